package flows

import (
	"fmt"

	"github.com/alexcabrera/easel/internal/model"
)

const chatSystemPrompt = `You are the assistant of an AI canvas editor. Users arrange layered images on a canvas and can ask for a background fill, a variation of an image, a restyle of a selection, or a restyle of a group of layers.
Answer questions about the canvas and the editing tools briefly. When the user wants an edit, suggest a concise prompt they can use with the matching tool.`

func backgroundFillRequest(in BackgroundFillInput) model.Request {
	return model.Request{
		Prompt: fmt.Sprintf(
			"Generate a background image based on the following prompt: %s. The image should be %d pixels wide and %d pixels tall.",
			in.Prompt, in.Width, in.Height),
	}
}

func variationRequest(in VariationInput) model.Request {
	return model.Request{
		Prompt: fmt.Sprintf(
			"Generate a variation of the provided image based on the following prompt: %s. Keep the overall composition and subject of the original image.",
			in.Prompt),
		Images: []string{in.SourceImage},
	}
}

func selectionEnhanceRequest(in SelectionEnhanceInput) model.Request {
	m := in.SelectionMask
	return model.Request{
		Prompt: fmt.Sprintf(
			"Restyle the region of the first image starting at x=%d, y=%d that is %d pixels wide and %d pixels tall, following this instruction: %s. Match the visual style of the second image. Leave everything outside that region unchanged and return the full image.",
			m.X, m.Y, m.Width, m.Height, in.Prompt),
		Images: []string{in.SourceImage, in.ReferenceStyleImage},
	}
}

func groupEnhanceRequest(in GroupEnhanceInput) model.Request {
	images := make([]string, 0, len(in.SourceImages)+1)
	images = append(images, in.SourceImages...)
	images = append(images, in.ReferenceImage)

	return model.Request{
		Prompt: fmt.Sprintf(
			"Restyle the first %d images as one cohesive group based on the following prompt: %s. Use the last image as the style reference and return a single combined image.",
			len(in.SourceImages), in.Prompt),
		Images: images,
	}
}

func chatRequest(in ChatInput) model.Request {
	history := make([]model.Turn, len(in.History))
	for i, turn := range in.History {
		history[i] = model.Turn{Role: model.Role(turn.Role), Text: turn.Text}
	}
	return model.Request{
		System:  chatSystemPrompt,
		Prompt:  in.Message,
		History: history,
	}
}
