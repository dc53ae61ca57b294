package editor

import (
	"context"
	"fmt"
	"slices"

	"github.com/alexcabrera/easel/internal/flows"
)

// RequestBackgroundFill generates a background the size of the canvas and
// inserts it as the bottom layer.
func (s *Session) RequestBackgroundFill(ctx context.Context, prompt string) (*Job, error) {
	width, height := s.store.CanvasSize()
	return s.start(ctx, flows.BackgroundFillFlow,
		Target{Kind: TargetBackground},
		flows.BackgroundFillInput{Prompt: prompt, Width: width, Height: height})
}

// RequestVariation generates a variation of the active layer and inserts
// it above that layer.
func (s *Session) RequestVariation(ctx context.Context, prompt string) (*Job, error) {
	id, ok := s.store.Selection().Active()
	if !ok {
		return nil, fmt.Errorf("%w: select a layer to vary", ErrNoSelection)
	}
	image, err := s.store.LayerImage(id)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, flows.VariationFlow,
		Target{Kind: TargetNewLayer, Layers: []string{id}},
		flows.VariationInput{Prompt: prompt, SourceImage: image})
}

// RequestSelectionEnhance restyles the selected region of the active layer
// after referenceImage and replaces the layer's image.
func (s *Session) RequestSelectionEnhance(ctx context.Context, prompt, referenceImage string) (*Job, error) {
	sel := s.store.Selection()
	id, ok := sel.Active()
	if !ok || sel.Region == nil {
		return nil, fmt.Errorf("%w: select a region of a layer", ErrNoSelection)
	}
	image, err := s.store.LayerImage(id)
	if err != nil {
		return nil, err
	}
	region := *sel.Region
	return s.start(ctx, flows.SelectionEnhanceFlow,
		Target{Kind: TargetRegion, Layers: []string{id}, Region: &region},
		flows.SelectionEnhanceInput{
			Prompt:              prompt,
			SourceImage:         image,
			ReferenceStyleImage: referenceImage,
			SelectionMask:       region,
		})
}

// RequestGroupEnhance restyles the selected layers as one group after
// referenceImage and replaces them with the result.
func (s *Session) RequestGroupEnhance(ctx context.Context, prompt, referenceImage string) (*Job, error) {
	ids := s.store.Selection().Layers
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: select the layers to restyle", ErrNoSelection)
	}
	images := make([]string, len(ids))
	for i, id := range ids {
		image, err := s.store.LayerImage(id)
		if err != nil {
			return nil, err
		}
		images[i] = image
	}
	return s.start(ctx, flows.GroupEnhanceFlow,
		Target{Kind: TargetGroup, Layers: slices.Clone(ids)},
		flows.GroupEnhanceInput{Prompt: prompt, SourceImages: images, ReferenceImage: referenceImage})
}

// SendChatMessage asks the assistant, carrying the conversation so far.
// A successful reply is appended to ChatHistory.
func (s *Session) SendChatMessage(ctx context.Context, text string) (*Job, error) {
	return s.start(ctx, flows.ChatFlow,
		Target{Kind: TargetChat},
		flows.ChatInput{Message: text, History: s.ChatHistory()})
}
