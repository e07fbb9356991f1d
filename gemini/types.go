package gemini

// Request is a generateContent request body.
type Request struct {
	Contents         []Content         `json:"contents"`
	Tools            []Tool            `json:"tools,omitempty"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is one turn of model input or output.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a single text fragment within a content turn.
type Part struct {
	Text string `json:"text"`
}

// Tool enables a provider-side capability for a request.
type Tool struct {
	GoogleSearch *GoogleSearch `json:"google_search,omitempty"`
}

// GoogleSearch enables web-search grounding.
type GoogleSearch struct{}

// GenerationConfig carries optional generation parameters.
type GenerationConfig struct {
	ThinkingConfig *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

// ThinkingConfig bounds the model's internal reasoning budget.
type ThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

// Response is a generateContent response body, and also the shape of each
// streamed chunk.
type Response struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content Content `json:"content"`
}

// Text returns the first candidate's first part text, or "" when absent.
func (r *Response) Text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

// GenerateOptions selects per-request provider features.
type GenerateOptions struct {
	WebSearch      bool
	ThinkingBudget int
}

// NewRequest builds a single-prompt request with the given options.
func NewRequest(prompt string, opts GenerateOptions) *Request {
	req := &Request{
		Contents: []Content{
			{Parts: []Part{{Text: prompt}}},
		},
	}
	applyOptions(req, opts)
	return req
}

// NewChatRequest builds a request from accumulated conversation turns.
func NewChatRequest(history []Content, opts GenerateOptions) *Request {
	req := &Request{Contents: history}
	applyOptions(req, opts)
	return req
}

func applyOptions(req *Request, opts GenerateOptions) {
	if opts.WebSearch {
		req.Tools = append(req.Tools, Tool{GoogleSearch: &GoogleSearch{}})
	}
	if opts.ThinkingBudget > 0 {
		req.GenerationConfig = &GenerationConfig{
			ThinkingConfig: &ThinkingConfig{ThinkingBudget: opts.ThinkingBudget},
		}
	}
}
