// Package server exposes the dashboard HTTP API and the AI relay. The
// relay is the only place the Gemini key is used; browsers and other
// clients never see provider credentials.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"devpulse/chat"
	"devpulse/gemini"
	"devpulse/news"
	"devpulse/tracker"
	"devpulse/videos"
)

// AIRelay forwards generation requests to the provider without
// interpreting the response body.
type AIRelay interface {
	GenerateRaw(ctx context.Context, model string, req *gemini.Request) ([]byte, error)
}

// Server wires the dashboard components behind a gin router.
type Server struct {
	engine  *gin.Engine
	tracker *tracker.Tracker
	news    *news.Aggregator
	videos  *videos.Curator
	chat    *chat.Session
	relay   AIRelay
	model   string
}

// NewServer creates the HTTP server. model is the default relay model,
// used when a generate request names none.
func NewServer(tr *tracker.Tracker, agg *news.Aggregator, cur *videos.Curator, session *chat.Session, relay AIRelay, model string) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:  gin.New(),
		tracker: tr,
		news:    agg,
		videos:  cur,
		chat:    session,
		relay:   relay,
		model:   model,
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

// Handler returns the router for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	api := s.engine.Group("/api")

	api.GET("/repos", s.listRepos)
	api.POST("/repos", s.addRepo)
	api.DELETE("/repos/:id", s.removeRepo)
	api.POST("/repos/:id/ack", s.ackRepo)
	api.POST("/repos/check", s.checkRepos)

	api.GET("/news/sources", s.listSources)
	api.POST("/news/sources", s.addSource)
	api.DELETE("/news/sources/:id", s.removeSource)
	api.GET("/news/sources/:id/articles", s.listArticles)
	api.POST("/news/sources/:id/fetch", s.fetchSource)

	api.GET("/videos/tags", s.listTags)
	api.POST("/videos/tags", s.addTag)
	api.DELETE("/videos/tags/:id", s.removeTag)
	api.GET("/videos/search", s.searchVideos)

	api.POST("/ai/generate", s.generate)
	api.POST("/ai/chat/stream", s.chatStream)
}

// errStatus maps domain errors to HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, tracker.ErrDuplicateRepo),
		errors.Is(err, news.ErrDuplicateSource),
		errors.Is(err, videos.ErrDuplicateTag):
		return http.StatusConflict
	case errors.Is(err, tracker.ErrInvalidRepo),
		errors.Is(err, news.ErrInvalidSource),
		errors.Is(err, videos.ErrInvalidTag):
		return http.StatusBadRequest
	case errors.Is(err, tracker.ErrRepoNotFound),
		errors.Is(err, news.ErrSourceNotFound),
		errors.Is(err, videos.ErrTagNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errStatus(err), gin.H{"error": err.Error()})
}

// --- repositories ---

func (s *Server) listRepos(c *gin.Context) {
	c.JSON(http.StatusOK, s.tracker.List())
}

func (s *Server) addRepo(c *gin.Context) {
	var body struct {
		Repo string `json:"repo"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	repo, err := s.tracker.Add(c.Request.Context(), body.Repo)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, repo)
}

func (s *Server) removeRepo(c *gin.Context) {
	var id int64
	if _, err := fmt.Sscanf(c.Param("id"), "%d", &id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid repository id"})
		return
	}
	if err := s.tracker.Remove(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ackRepo(c *gin.Context) {
	var id int64
	if _, err := fmt.Sscanf(c.Param("id"), "%d", &id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid repository id"})
		return
	}
	if err := s.tracker.Acknowledge(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) checkRepos(c *gin.Context) {
	// The check outlives the request; a trigger while one is running is
	// coalesced into a single rerun.
	started := s.tracker.TriggerCheck(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"started": started, "inFlight": s.tracker.InFlight()})
}

// --- news ---

func (s *Server) listSources(c *gin.Context) {
	c.JSON(http.StatusOK, s.news.ListSources())
}

func (s *Server) addSource(c *gin.Context) {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	source, err := s.news.AddSource(c.Request.Context(), body.URL)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, source)
}

func (s *Server) removeSource(c *gin.Context) {
	if err := s.news.RemoveSource(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listArticles(c *gin.Context) {
	c.JSON(http.StatusOK, s.news.Articles(c.Param("id")))
}

func (s *Server) fetchSource(c *gin.Context) {
	articles, err := s.news.Fetch(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, articles)
}

// --- videos ---

func (s *Server) listTags(c *gin.Context) {
	c.JSON(http.StatusOK, s.videos.ListTags())
}

func (s *Server) addTag(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tag, err := s.videos.AddTag(c.Request.Context(), body.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (s *Server) removeTag(c *gin.Context) {
	if err := s.videos.RemoveTag(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) searchVideos(c *gin.Context) {
	tag := c.Query("tag")
	if tag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing tag parameter"})
		return
	}

	vids, err := s.videos.Search(c.Request.Context(), tag)
	if err != nil {
		// A failed search is distinct from a valid empty result.
		abortWithError(c, err)
		return
	}
	if vids == nil {
		vids = []videos.Video{}
	}
	c.JSON(http.StatusOK, vids)
}

// --- AI relay ---

type generateRequest struct {
	Model   string `json:"model"`
	Content string `json:"content"`
	Options struct {
		WebSearch      bool `json:"webSearch"`
		ThinkingBudget int  `json:"thinkingBudget"`
	} `json:"options"`
}

func (s *Server) generate(c *gin.Context) {
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content must not be empty"})
		return
	}

	model := body.Model
	if model == "" {
		model = s.model
	}

	req := gemini.NewRequest(body.Content, gemini.GenerateOptions{
		WebSearch:      body.Options.WebSearch,
		ThinkingBudget: body.Options.ThinkingBudget,
	})

	raw, err := s.relay.GenerateRaw(c.Request.Context(), model, req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	// The provider body is forwarded as-is.
	c.Data(http.StatusOK, "application/json", raw)
}

func (s *Server) chatStream(c *gin.Context) {
	var body struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message must not be empty"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// Provider frames are re-emitted one-for-one; clients reassemble the
	// reply themselves, so no terminal sentinel is added.
	_, err := s.chat.Send(c.Request.Context(), body.Message, func(frame []byte) {
		fmt.Fprintf(c.Writer, "data: %s\n\n", frame)
		c.Writer.Flush()
	}, nil)
	if err != nil {
		// Headers are already committed once the first frame is out;
		// this path only fires when the stream never opened.
		slog.Warn("chat stream failed", "error", err)
		if !c.Writer.Written() {
			c.Writer.Header().Del("Content-Type")
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
	}
}
