package flows

const (
	BackgroundFillFlow   = "backgroundFillFlow"
	VariationFlow        = "variationFlow"
	SelectionEnhanceFlow = "selectionEnhanceFlow"
	GroupEnhanceFlow     = "groupEnhanceFlow"
	ChatFlow             = "chatFlow"
)

// Models names the model refs the built-in flows are bound to.
type Models struct {
	Image string
	Chat  string
}

// DefaultModels is used when configuration leaves a model unset.
var DefaultModels = Models{
	Image: "googleai/gemini-2.0-flash-preview-image-generation",
	Chat:  "googleai/gemini-2.5-flash",
}

var imageOutput = NewSchema(
	Field{Name: "image", Kind: FieldImage, Required: true, Description: "Generated image as a data URI"},
)

// Builtin returns the editor's flows in registration order.
func Builtin(m Models) []*Flow {
	if m.Image == "" {
		m.Image = DefaultModels.Image
	}
	if m.Chat == "" {
		m.Chat = DefaultModels.Chat
	}

	return []*Flow{
		NewFlow(Contract{
			Name:        BackgroundFillFlow,
			Description: "Generate a background image for the canvas",
			Version:     "1.0.0",
			Input: NewSchema(
				Field{Name: "prompt", Kind: FieldNonBlankText, Required: true, Description: "What the background should show"},
				Field{Name: "width", Kind: FieldPositiveInt, Required: true, Description: "Canvas width in pixels"},
				Field{Name: "height", Kind: FieldPositiveInt, Required: true, Description: "Canvas height in pixels"},
			),
			Output: imageOutput,
		}, m.Image, ProducesImage, backgroundFillRequest),

		NewFlow(Contract{
			Name:        VariationFlow,
			Description: "Generate a variation of the current layer",
			Version:     "1.0.0",
			Input: NewSchema(
				Field{Name: "prompt", Kind: FieldNonBlankText, Required: true, Description: "How the variation should differ"},
				Field{Name: "sourceImage", Kind: FieldImage, Required: true, Description: "Image to vary"},
			),
			Output: imageOutput,
		}, m.Image, ProducesImage, variationRequest),

		NewFlow(Contract{
			Name:        SelectionEnhanceFlow,
			Description: "Restyle the selected region using a reference style image",
			Version:     "1.0.0",
			Input: NewSchema(
				Field{Name: "prompt", Kind: FieldNonBlankText, Required: true, Description: "Restyle instruction"},
				Field{Name: "sourceImage", Kind: FieldImage, Required: true, Description: "Layer containing the selection"},
				Field{Name: "referenceStyleImage", Kind: FieldImage, Required: true, Description: "Image whose style to apply"},
				Field{Name: "selectionMask", Kind: FieldRegion, Required: true, Description: "Selected region"},
			),
			Output: imageOutput,
		}, m.Image, ProducesImage, selectionEnhanceRequest),

		NewFlow(Contract{
			Name:        GroupEnhanceFlow,
			Description: "Restyle a group of layers as one using a reference image",
			Version:     "1.0.0",
			Input: NewSchema(
				Field{Name: "prompt", Kind: FieldNonBlankText, Required: true, Description: "Restyle instruction"},
				Field{Name: "sourceImages", Kind: FieldImageList, Required: true, Description: "Layer images of the group, bottom to top"},
				Field{Name: "referenceImage", Kind: FieldImage, Required: true, Description: "Style reference"},
			),
			Output: imageOutput,
		}, m.Image, ProducesImage, groupEnhanceRequest),

		NewFlow(Contract{
			Name:        ChatFlow,
			Description: "Converse with the editor assistant",
			Version:     "1.0.0",
			Input: NewSchema(
				Field{Name: "message", Kind: FieldNonBlankText, Required: true, Description: "User message"},
				Field{Name: "history", Kind: FieldHistory, Description: "Prior turns, oldest first"},
			),
			Output: NewSchema(
				Field{Name: "reply", Kind: FieldNonBlankText, Required: true, Description: "Assistant reply"},
			),
		}, m.Chat, ProducesReply, chatRequest),
	}
}

// NewDefaultRegistry registers the built-in flows and seals the registry.
func NewDefaultRegistry(m Models) (*Registry, error) {
	r := NewRegistry()
	for _, f := range Builtin(m) {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	r.Seal()
	return r, nil
}
