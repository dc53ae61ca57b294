// Package flows declares generation flows, validates their inputs and
// outputs, and executes them against an external generative model.
package flows

import (
	"encoding/json"
	"fmt"

	"github.com/alexcabrera/easel/internal/model"
)

// Contract identifies a flow kind and declares its input and output shape.
type Contract struct {
	Name        string
	Description string
	Version     string
	Input       Schema
	Output      Schema
}

// Produces says which artifact a flow yields.
type Produces string

const (
	ProducesImage Produces = "image"
	ProducesReply Produces = "reply"
)

// Flow is a registered contract bound to a model and a request builder.
type Flow struct {
	Contract
	Model    string // Backend-qualified model ref
	Produces Produces

	build func(raw json.RawMessage) (model.Request, error)
}

// NewFlow binds a contract to a typed request builder. build must be a pure
// function of its input so identical input yields an identical request.
func NewFlow[T Input](c Contract, modelRef string, produces Produces, build func(T) model.Request) *Flow {
	return &Flow{
		Contract: c,
		Model:    modelRef,
		Produces: produces,
		build: func(raw json.RawMessage) (model.Request, error) {
			var in T
			if err := json.Unmarshal(raw, &in); err != nil {
				return model.Request{}, fmt.Errorf("decode input: %w", err)
			}
			req := build(in)
			req.Model = modelRef
			req.WantImage = produces == ProducesImage
			return req, nil
		},
	}
}

// Request builds the outbound model request from already validated input.
func (f *Flow) Request(raw json.RawMessage) (model.Request, error) {
	if f.build == nil {
		return model.Request{}, fmt.Errorf("flow %s has no request builder", f.Name)
	}
	return f.build(raw)
}

// HasInputSchema returns true if the flow declares input fields.
func (f *Flow) HasInputSchema() bool {
	return len(f.Input.Fields) > 0
}

// HasOutputSchema returns true if the flow declares output fields.
func (f *Flow) HasOutputSchema() bool {
	return len(f.Output.Fields) > 0
}
