// Package model is the boundary to external generative models. Every backend
// is treated as untrusted and potentially slow or unavailable.
package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message of a conversation.
type Turn struct {
	Role Role
	Text string
}

// Request is a single outbound generation call.
type Request struct {
	Model   string   // Backend-qualified model ref, e.g. googleai/gemini-2.0-flash-preview-image-generation
	System  string   // Optional system instruction
	Prompt  string   // Text prompt
	Images  []string // Reference images as data URIs, in order
	History []Turn   // Prior conversation, chat only

	// WantImage asks backends that can return several modalities for an
	// image. Text-only requests leave it false.
	WantImage bool
}

// Media is a media payload returned by a model.
type Media struct {
	URL         string // data URI
	ContentType string
}

// Response is what a backend returned. Media is nil when the model produced
// no image.
type Response struct {
	Media *Media
	Text  string
}

// Generator performs one generation call per invocation.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

var (
	ErrNoBackend    = errors.New("no backend for model")
	ErrInvalidModel = errors.New("invalid model reference")
)

// SplitRef splits "backend/model" into its parts.
func SplitRef(ref string) (backend, name string, err error) {
	backend, name, ok := strings.Cut(ref, "/")
	if !ok || backend == "" || name == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidModel, ref)
	}
	return backend, name, nil
}

// Router dispatches requests to backends by the prefix of the model ref.
// Backends receive the request with the prefix stripped.
type Router struct {
	backends map[string]Generator
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{backends: make(map[string]Generator)}
}

// Handle registers a backend under a prefix, replacing any previous one.
func (r *Router) Handle(prefix string, g Generator) {
	r.backends[prefix] = g
}

// Backends lists registered prefixes.
func (r *Router) Backends() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate routes the request to the backend named by its model ref.
func (r *Router) Generate(ctx context.Context, req Request) (*Response, error) {
	backend, name, err := SplitRef(req.Model)
	if err != nil {
		return nil, err
	}

	g, ok := r.backends[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, req.Model)
	}

	req.Model = name
	return g.Generate(ctx, req)
}
