package editor

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/alexcabrera/easel/internal/flows"
)

var (
	ErrLayerNotFound = errors.New("layer not found")
	ErrBadTarget     = errors.New("invalid commit target")
)

// Document is an in-memory Store with linear undo and redo.
type Document struct {
	mu        sync.Mutex
	width     int
	height    int
	layers    []Layer
	selection Selection
	nextID    int

	staged []Layer // layers before the last commit, awaiting PushHistory
	undo   []Entry
	redo   []Entry
}

// NewDocument creates an empty canvas of the given size.
func NewDocument(width, height int) *Document {
	return &Document{width: width, height: height}
}

// CanvasSize returns the canvas width and height in pixels.
func (d *Document) CanvasSize() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

// Selection returns a copy of the current selection.
func (d *Document) Selection() Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneSelection(d.selection)
}

// Layers returns the stack bottom to top.
func (d *Document) Layers() []Layer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.layers)
}

// LayerImage returns the data URI of the layer with the given ID.
func (d *Document) LayerImage(id string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.index(id)
	if i < 0 {
		return "", fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	return d.layers[i].Image, nil
}

// AddLayer pushes a layer on top of the stack and selects it. It is not
// recorded in history.
func (d *Document) AddLayer(name, image string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := d.newLayer(name, image)
	d.layers = append(d.layers, l)
	d.selection = Selection{Layers: []string{l.ID}}
	return l.ID
}

// RemoveLayer deletes a layer and drops it from the selection.
func (d *Document) RemoveLayer(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	d.layers = slices.Delete(d.layers, i, i+1)
	d.selection.Layers = slices.DeleteFunc(d.selection.Layers, func(s string) bool { return s == id })
	if len(d.selection.Layers) == 0 {
		d.selection.Region = nil
	}
	return nil
}

// Select replaces the selection. Unknown layer IDs are rejected.
func (d *Document) Select(region *flows.Region, layerIDs ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range layerIDs {
		if d.index(id) < 0 {
			return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
		}
	}
	d.selection = cloneSelection(Selection{Layers: layerIDs, Region: region})
	return nil
}

// CommitLayer writes a generated image to the canvas as directed by target
// and returns the ID of the layer it created or replaced.
func (d *Document) CommitLayer(image string, target Target) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := slices.Clone(d.layers)
	var id string

	switch target.Kind {
	case TargetBackground:
		l := d.newLayer("Background", image)
		d.layers = slices.Insert(d.layers, 0, l)
		id = l.ID

	case TargetNewLayer:
		if len(target.Layers) == 0 {
			return "", fmt.Errorf("%w: no source layer", ErrBadTarget)
		}
		i := d.index(target.Layers[0])
		if i < 0 {
			return "", fmt.Errorf("%w: %s", ErrLayerNotFound, target.Layers[0])
		}
		l := d.newLayer(d.layers[i].Name+" variation", image)
		d.layers = slices.Insert(d.layers, i+1, l)
		id = l.ID

	case TargetRegion:
		if len(target.Layers) == 0 {
			return "", fmt.Errorf("%w: no layer", ErrBadTarget)
		}
		i := d.index(target.Layers[0])
		if i < 0 {
			return "", fmt.Errorf("%w: %s", ErrLayerNotFound, target.Layers[0])
		}
		d.layers[i].Image = image
		id = d.layers[i].ID

	case TargetGroup:
		if len(target.Layers) == 0 {
			return "", fmt.Errorf("%w: empty group", ErrBadTarget)
		}
		lowest := len(d.layers)
		for _, lid := range target.Layers {
			i := d.index(lid)
			if i < 0 {
				return "", fmt.Errorf("%w: %s", ErrLayerNotFound, lid)
			}
			lowest = min(lowest, i)
		}
		l := d.newLayer("Group", image)
		d.layers = slices.DeleteFunc(d.layers, func(x Layer) bool {
			return slices.Contains(target.Layers, x.ID)
		})
		d.layers = slices.Insert(d.layers, lowest, l)
		id = l.ID

	default:
		return "", fmt.Errorf("%w: %s", ErrBadTarget, target.Kind)
	}

	d.staged = before
	d.selection = Selection{Layers: []string{id}}
	return id, nil
}

// PushHistory records entry as one undo step covering the last commit.
func (d *Document) PushHistory(entry Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry.before = d.staged
	if entry.before == nil {
		entry.before = slices.Clone(d.layers)
	}
	entry.after = slices.Clone(d.layers)
	d.staged = nil

	d.undo = append(d.undo, entry)
	d.redo = nil
}

// History returns the undo stack, oldest first.
func (d *Document) History() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.undo)
}

// Undo reverts the most recent step. It reports false when there is
// nothing to undo.
func (d *Document) Undo() (Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.undo) == 0 {
		return Entry{}, false
	}
	e := d.undo[len(d.undo)-1]
	d.undo = d.undo[:len(d.undo)-1]
	d.redo = append(d.redo, e)
	d.restore(e.before)
	return e, true
}

// Redo reapplies the most recently undone step.
func (d *Document) Redo() (Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.redo) == 0 {
		return Entry{}, false
	}
	e := d.redo[len(d.redo)-1]
	d.redo = d.redo[:len(d.redo)-1]
	d.undo = append(d.undo, e)
	d.restore(e.after)
	return e, true
}

func (d *Document) restore(layers []Layer) {
	d.layers = slices.Clone(layers)
	d.selection.Layers = slices.DeleteFunc(d.selection.Layers, func(id string) bool {
		return d.index(id) < 0
	})
	if len(d.selection.Layers) == 0 {
		d.selection.Region = nil
	}
}

func (d *Document) newLayer(name, image string) Layer {
	d.nextID++
	return Layer{ID: fmt.Sprintf("L%d", d.nextID), Name: name, Image: image}
}

func (d *Document) index(id string) int {
	return slices.IndexFunc(d.layers, func(l Layer) bool { return l.ID == id })
}

func cloneSelection(s Selection) Selection {
	out := Selection{Layers: slices.Clone(s.Layers)}
	if s.Region != nil {
		r := *s.Region
		out.Region = &r
	}
	return out
}
