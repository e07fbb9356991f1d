// Package extract recovers JSON arrays from generative-AI text responses.
// Models asked to "respond with only a JSON array" still wrap the payload in
// prose or markdown fences often enough that callers cannot parse responses
// directly.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

// ErrNoArray is returned by Array when the response contains no bracketed
// array at all.
var ErrNoArray = errors.New("no JSON array in response")

// Mapper converts one raw array element into a typed value. Returning an
// error rejects the element.
type Mapper[T any] func(json.RawMessage) (T, error)

// Array extracts a JSON array from an AI response and maps each element.
// Extraction is strict: a response without a usable array, unparseable
// array text, or a failing element mapper yields a descriptive error so the
// caller can distinguish unusable AI output from an empty result.
//
// The array is located by slicing from the first '[' to the last ']', not by
// balanced-bracket parsing. A response containing several top-level arrays,
// or stray brackets in surrounding prose, can therefore mis-extract; the
// model is instructed to emit a single flat array.
func Array[T any](text string, mapFn Mapper[T]) ([]T, error) {
	working := strings.TrimSpace(text)
	working = unwrapFence(working)

	start := strings.Index(working, "[")
	end := strings.LastIndex(working, "]")
	if start == -1 || end == -1 || end < start {
		return nil, ErrNoArray
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(working[start:end+1]), &elements); err != nil {
		return nil, fmt.Errorf("parse extracted array: %w", err)
	}

	out := make([]T, 0, len(elements))
	for i, raw := range elements {
		v, err := mapFn(raw)
		if err != nil {
			return nil, fmt.Errorf("map element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ArrayLenient extracts a JSON array from an AI response, treating every
// failure as "no structured data": an unusable response yields an empty
// slice and a log entry, and elements rejected by the mapper are skipped.
func ArrayLenient[T any](text string, mapFn Mapper[T]) []T {
	working := strings.TrimSpace(text)
	working = unwrapFence(working)

	start := strings.Index(working, "[")
	end := strings.LastIndex(working, "]")
	if start == -1 || end == -1 || end < start {
		slog.Warn("no JSON array in AI response", "length", len(text))
		return []T{}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(working[start:end+1]), &elements); err != nil {
		slog.Warn("failed to parse extracted array", "error", err)
		return []T{}
	}

	out := make([]T, 0, len(elements))
	for i, raw := range elements {
		v, err := mapFn(raw)
		if err != nil {
			slog.Warn("skipping unmappable array element", "index", i, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// unwrapFence replaces the working text with the inner content of the first
// fenced code block, when one is present. An unterminated fence leaves the
// text unchanged.
func unwrapFence(s string) string {
	start := strings.Index(s, "```")
	if start == -1 {
		return s
	}
	inner := s[start+3:]
	end := strings.Index(inner, "```")
	if end == -1 {
		return s
	}
	inner = inner[:end]
	inner = strings.TrimPrefix(strings.TrimLeft(inner, " \t"), "json")
	return strings.TrimSpace(inner)
}

// NormalizeTag upper-cases the first rune of a tag and lower-cases the rest,
// so "AI", "ai" and "Ai" all collapse to "Ai". Idempotent. All-caps
// acronyms are not special-cased.
func NormalizeTag(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
