package client

import "echosphere/internal/event"

// UI is the collaborator that renders the chat session to the user. The
// networking layer never renders anything itself; a concrete UI lives with
// the client binary.
type UI interface {
	// Alert shows an attention-grabbing notice, e.g. an error.
	Alert(text string)
	// AskFor prompts for a value, offering a default. It returns an error
	// when the prompt is cancelled, which callers propagate upward.
	AskFor(prompt, defaultValue string) (string, error)
	// DisplayText appends a line to the chat transcript.
	DisplayText(text string)
	// Draw refreshes the screen.
	Draw()
	// Exit tears the UI down. A non-nil err marks an abnormal end.
	Exit(err error)
	// MessageSubmit publishes every message the user submits.
	MessageSubmit() *event.Emitter[string]
}
