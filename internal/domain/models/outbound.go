package models

// OutboundMessageRequest represents requests to send a message manually via the API.
type OutboundMessageRequest struct {
	ChatID  int64  `json:"chat_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// Button is one inline keyboard button carrying an opaque action identifier.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of inline buttons, one slice per row.
type Keyboard [][]Button

// OutboundMessage is a bot reply addressed to a chat, optionally with buttons.
type OutboundMessage struct {
	ChatID   int64
	Text     string
	Keyboard Keyboard
}
