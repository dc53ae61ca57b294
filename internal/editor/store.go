// Package editor connects canvas state to generation flows. A Session turns
// the current canvas and selection into flow inputs, runs each request as a
// cancellable job, and commits successful results to a Store as a single
// undoable step.
package editor

import (
	"slices"
	"strings"

	"github.com/alexcabrera/easel/internal/flows"
)

// Store is the canvas document a Session reads from and commits to.
// Implementations must be safe for concurrent use.
type Store interface {
	CanvasSize() (width, height int)
	Selection() Selection
	Layers() []Layer
	LayerImage(id string) (string, error)

	// CommitLayer applies image to target and returns the ID of the layer
	// that now holds it.
	CommitLayer(image string, target Target) (string, error)
	PushHistory(entry Entry)
}

// Layer is one image in the canvas stack.
type Layer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"` // data URI
}

// Selection is the user's current selection. Layers are ordered bottom to
// top and the last one is the active layer.
type Selection struct {
	Layers []string      `json:"layers,omitempty"`
	Region *flows.Region `json:"region,omitempty"`
}

// Active returns the active layer ID.
func (s Selection) Active() (string, bool) {
	if len(s.Layers) == 0 {
		return "", false
	}
	return s.Layers[len(s.Layers)-1], true
}

// TargetKind says how a result is committed.
type TargetKind string

const (
	// TargetBackground inserts a new bottom layer.
	TargetBackground TargetKind = "background"
	// TargetNewLayer inserts a new layer above Layers[0].
	TargetNewLayer TargetKind = "new-layer"
	// TargetRegion replaces the image of Layers[0], edited inside Region.
	TargetRegion TargetKind = "region"
	// TargetGroup replaces all of Layers with a single layer.
	TargetGroup TargetKind = "group"
	// TargetChat never touches the canvas.
	TargetChat TargetKind = "chat"
)

// Target is what a job's result will be committed to.
type Target struct {
	Kind   TargetKind    `json:"kind"`
	Layers []string      `json:"layers,omitempty"`
	Region *flows.Region `json:"region,omitempty"`
}

const (
	canvasKey = "canvas"
	chatKey   = "chat"
)

// Keys returns the conflict keys of t. Two targets conflict when they
// share a key, so a group and any of its member layers are exclusive.
func (t Target) Keys() []string {
	switch t.Kind {
	case TargetBackground:
		return []string{canvasKey}
	case TargetChat:
		return []string{chatKey}
	}
	keys := make([]string, len(t.Layers))
	for i, id := range t.Layers {
		keys[i] = LayerKey(id)
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// Key is a stable display form of the target.
func (t Target) Key() string {
	return string(t.Kind) + ":" + strings.Join(t.Keys(), ",")
}

// LayerKey is the conflict key for a single layer.
func LayerKey(id string) string {
	return "layer:" + id
}

// Entry is one undo step.
type Entry struct {
	Label   string `json:"label"`
	Flow    string `json:"flow"`
	JobID   string `json:"job_id"`
	Target  Target `json:"target"`
	LayerID string `json:"layer_id"`

	before []Layer
	after  []Layer
}
