package flows

// Input is implemented by every typed flow input. FlowName is the tag of
// the variant and must match the flow it is executed against.
type Input interface {
	FlowName() string
}

// Region is a rectangular selection in canvas pixels.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ChatTurn is one prior message in a conversation.
type ChatTurn struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// BackgroundFillInput asks for a new background of the given canvas size.
type BackgroundFillInput struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (BackgroundFillInput) FlowName() string { return BackgroundFillFlow }

// VariationInput restyles a single source image.
type VariationInput struct {
	Prompt      string `json:"prompt"`
	SourceImage string `json:"sourceImage"`
}

func (VariationInput) FlowName() string { return VariationFlow }

// SelectionEnhanceInput edits the masked region of a source image in the style of a reference.
type SelectionEnhanceInput struct {
	Prompt              string `json:"prompt"`
	SourceImage         string `json:"sourceImage"`
	ReferenceStyleImage string `json:"referenceStyleImage"`
	SelectionMask       Region `json:"selectionMask"`
}

func (SelectionEnhanceInput) FlowName() string { return SelectionEnhanceFlow }

// GroupEnhanceInput applies one reference style to several source images.
type GroupEnhanceInput struct {
	Prompt         string   `json:"prompt"`
	SourceImages   []string `json:"sourceImages"`
	ReferenceImage string   `json:"referenceImage"`
}

func (GroupEnhanceInput) FlowName() string { return GroupEnhanceFlow }

// ChatInput is a message to the creative assistant with optional prior turns.
type ChatInput struct {
	Message string     `json:"message"`
	History []ChatTurn `json:"history,omitempty"`
}

func (ChatInput) FlowName() string { return ChatFlow }

// Output is the canonical artifact of a successful execution. Image flows
// set Image to a data URI; the chat flow sets Reply.
type Output struct {
	Image string `json:"image,omitempty"`
	Reply string `json:"reply,omitempty"`
}
