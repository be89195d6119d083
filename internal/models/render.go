package models

// RenderKind identifies the variant of a Render instruction.
type RenderKind string

const (
	RenderChoiceList   RenderKind = "choice_list"
	RenderPlainText    RenderKind = "plain_text"
	RenderImage        RenderKind = "image"
	RenderRetractImage RenderKind = "retract_image"
)

// Choice is a single selectable item of a choice list.
type Choice struct {
	Label    string `json:"label"`
	Token    string `json:"token"`
	Selected bool   `json:"selected,omitempty"`
}

// Render is an instruction for the display collaborator.
type Render struct {
	Kind RenderKind `json:"kind"`
	// Title is the choice list heading or the plain text body.
	Title   string   `json:"title,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
	// Done is the always-present completion action of multi-select lists.
	Done     *Choice `json:"done,omitempty"`
	ImageRef string  `json:"image_ref,omitempty"`
	Handle   string  `json:"handle,omitempty"`
	// Replace asks the transport to edit the last rendered message in place when it can.
	Replace bool `json:"replace,omitempty"`
}

// ShowChoiceList builds a choice list instruction. done may be nil.
func ShowChoiceList(title string, choices []Choice, done *Choice) Render {
	return Render{Kind: RenderChoiceList, Title: title, Choices: choices, Done: done}
}

// ShowPlainText builds a plain text instruction.
func ShowPlainText(body string) Render {
	return Render{Kind: RenderPlainText, Title: body}
}

// ShowImage builds an image instruction; caption travels in Title.
func ShowImage(ref, caption string) Render {
	return Render{Kind: RenderImage, ImageRef: ref, Title: caption}
}

// RetractImage builds an instruction removing a previously shown image.
func RetractImage(handle string) Render {
	return Render{Kind: RenderRetractImage, Handle: handle}
}

// InPlace returns a copy of r that asks for edit-in-place delivery.
func (r Render) InPlace() Render {
	r.Replace = true
	return r
}

// SelectedFlags returns the selection flag of every choice, in order.
func (r Render) SelectedFlags() []bool {
	flags := make([]bool, len(r.Choices))
	for i, c := range r.Choices {
		flags[i] = c.Selected
	}
	return flags
}
