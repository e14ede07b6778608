package models

// EventKind classifies inbound events after transport decoding.
type EventKind int

const (
	EventCommand EventKind = iota
	EventText
	EventCallback
	EventDocument
)

// InboundEvent is a transport-neutral operator event.
type InboundEvent struct {
	Kind    EventKind
	ChatID  int64
	UserID  int64
	Private bool

	Command  Command
	Text     string
	Data     string
	Document *UploadedFile
}

// UploadedFile carries the content of a document sent by the operator.
type UploadedFile struct {
	Name string
	Body []byte
}
