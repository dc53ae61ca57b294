package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alexcabrera/easel/internal/datauri"
	"github.com/alexcabrera/easel/internal/log"
	"github.com/alexcabrera/easel/internal/model"
)

// Runner executes a named flow. *Executor implements it, and so does the
// history recorder returned by HistoryService.Wrap.
type Runner interface {
	Execute(ctx context.Context, flowName string, input any) (*Output, error)
}

// Executor validates flow input, calls the model once, and validates the
// result. It holds no per-call state and is safe for concurrent use.
type Executor struct {
	registry  *Registry
	generator model.Generator
	logger    *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger used for settle events.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an executor over a registry and a model generator.
func NewExecutor(registry *Registry, generator model.Generator, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:  registry,
		generator: generator,
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs flowName against input. Input may be a typed Input, a
// map[string]any, or JSON as json.RawMessage, []byte, or string. Every
// failure is a *Error.
func (e *Executor) Execute(ctx context.Context, flowName string, input any) (*Output, error) {
	start := time.Now()

	flow, raw, err := e.prepare(flowName, input)
	if err != nil {
		e.settle(flowName, "", start, err)
		return nil, err
	}

	out, err := e.generate(ctx, flow, raw)
	e.settle(flowName, flow.Model, start, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Validate resolves the flow and checks input without calling the model.
func (e *Executor) Validate(flowName string, input any) error {
	_, _, err := e.prepare(flowName, input)
	return err
}

func (e *Executor) prepare(flowName string, input any) (*Flow, json.RawMessage, error) {
	flow, err := e.registry.Resolve(flowName)
	if err != nil {
		return nil, nil, err
	}

	if in, ok := input.(Input); ok && in.FlowName() != flow.Name {
		return nil, nil, &Error{
			Kind:   KindInvalidInput,
			Flow:   flow.Name,
			Detail: fmt.Sprintf("input is for flow %s", in.FlowName()),
		}
	}

	candidate, raw, err := normalizeInput(input)
	if err != nil {
		return nil, nil, invalidInput(flow.Name, err)
	}

	if err := flow.Input.Validate(candidate); err != nil {
		return nil, nil, invalidInput(flow.Name, err)
	}

	return flow, raw, nil
}

func (e *Executor) generate(ctx context.Context, flow *Flow, raw json.RawMessage) (*Output, error) {
	req, err := flow.Request(raw)
	if err != nil {
		return nil, invalidInput(flow.Name, err)
	}

	resp, err := e.generator.Generate(ctx, req)
	if err != nil {
		return nil, &Error{
			Kind:   KindModelUnavailable,
			Flow:   flow.Name,
			Detail: err.Error(),
			Err:    err,
		}
	}

	out, err := extractOutput(flow, resp)
	if err != nil {
		return nil, err
	}

	if err := flow.Output.Validate(outputCandidate(flow, out)); err != nil {
		fe := &Error{Kind: KindInvalidOutput, Flow: flow.Name, Err: err}
		var ve *ValidationError
		if errors.As(err, &ve) {
			fe.Fields = ve.Fields
		}
		return nil, fe
	}

	return out, nil
}

func extractOutput(flow *Flow, resp *model.Response) (*Output, error) {
	switch flow.Produces {
	case ProducesReply:
		if resp == nil || strings.TrimSpace(resp.Text) == "" {
			return nil, &Error{
				Kind:   KindEmptyGenerationResult,
				Flow:   flow.Name,
				Detail: "model returned no reply text",
			}
		}
		return &Output{Reply: resp.Text}, nil

	default:
		if resp == nil || resp.Media == nil || strings.TrimSpace(resp.Media.URL) == "" {
			return nil, &Error{
				Kind:   KindEmptyGenerationResult,
				Flow:   flow.Name,
				Detail: "model returned no image",
			}
		}
		// Malformed URIs are left to output validation.
		if _, err := datauri.Parse(resp.Media.URL); errors.Is(err, datauri.ErrEmptyPayload) {
			return nil, &Error{
				Kind:   KindEmptyGenerationResult,
				Flow:   flow.Name,
				Detail: "model returned an image with no data",
				Err:    err,
			}
		}
		return &Output{Image: resp.Media.URL}, nil
	}
}

func outputCandidate(flow *Flow, out *Output) map[string]any {
	if flow.Produces == ProducesReply {
		return map[string]any{"reply": out.Reply}
	}
	return map[string]any{"image": out.Image}
}

func (e *Executor) settle(flowName, modelRef string, start time.Time, err error) {
	attrs := []any{log.Flow(flowName), log.Duration(time.Since(start))}
	if modelRef != "" {
		attrs = append(attrs, log.Model(modelRef))
	}
	if err == nil {
		e.logger.Debug("flow settled", append(attrs, log.Status("success"))...)
		return
	}
	attrs = append(attrs, log.Status("failed"), log.Kind(KindOf(err)), log.Error(err))
	e.logger.Warn("flow settled", attrs...)
}

// normalizeInput converts any accepted input form into a JSON object and
// its canonical encoding.
func normalizeInput(input any) (map[string]any, json.RawMessage, error) {
	var data []byte
	switch v := input.(type) {
	case nil:
		return nil, nil, errors.New("input is required")
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, nil, fmt.Errorf("encode input: %w", err)
		}
		data = b
	}

	var candidate map[string]any
	if err := json.Unmarshal(data, &candidate); err != nil {
		return nil, nil, fmt.Errorf("input must be a JSON object: %w", err)
	}
	if candidate == nil {
		return nil, nil, errors.New("input must be a JSON object")
	}

	raw, err := json.Marshal(candidate)
	if err != nil {
		return nil, nil, fmt.Errorf("encode input: %w", err)
	}
	return candidate, raw, nil
}
