package registration

import (
	"context"
	"errors"
	"time"
)

// ErrUnreachable marks a send that failed because the recipient blocked the
// bot or no longer exists. Transports wrap their errors with it.
var ErrUnreachable = errors.New("registration: recipient unreachable")

// Button is an inline button. Exactly one of Data and URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// SendOptions describe how a message is presented.
type SendOptions struct {
	Markdown bool
	// Inline takes precedence over Reply.
	Inline         [][]Button
	Reply          [][]string
	RemoveKeyboard bool
	OneTime        bool
	Placeholder    string
}

// Document is a file sent to a chat.
type Document struct {
	Name    string
	MIME    string
	Data    []byte
	Caption string
}

// MessageRef addresses a message previously delivered to a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Transport delivers messages. Implementations return an error wrapping
// ErrUnreachable when the recipient cannot be reached.
type Transport interface {
	SendText(ctx context.Context, to int64, text string, opts SendOptions) error
	SendImage(ctx context.Context, to int64, imageRef, caption string, opts SendOptions) error
	SendDocument(ctx context.Context, to int64, doc Document, opts SendOptions) error
	AnswerInteraction(ctx context.Context, interactionID, text string, alert bool) error
	EditCaption(ctx context.Context, ref MessageRef, caption string) error
}

// Scheduler runs deferred callbacks. Arm and Cancel address the single idle
// timer of an identity; After schedules an independent one-shot delay.
type Scheduler interface {
	Arm(id int64, d time.Duration, fn func())
	Cancel(id int64) bool
	After(d time.Duration, fn func())
}

// EventKind tells how an inbound event was produced.
type EventKind int

const (
	// EventStart is the start command, Text carrying the optional payload.
	EventStart EventKind = iota
	// EventText is a free text message.
	EventText
	// EventImage is a photo message, ImageRef carrying its file reference.
	EventImage
	// EventAction is a button press, Text carrying the action data.
	EventAction
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventText:
		return "text"
	case EventImage:
		return "image"
	case EventAction:
		return "action"
	}
	return "unknown"
}

// Event is one inbound interaction of a chat identity.
type Event struct {
	Kind     EventKind
	From     int64
	Text     string
	ImageRef string

	// InteractionID, Message and Caption are set for EventAction.
	InteractionID string
	Message       MessageRef
	Caption       string
}
