package models

import "strings"

// CommandType enumerates the slash commands the bot understands.
type CommandType string

const (
	CommandStart   CommandType = "start"
	CommandHelp    CommandType = "help"
	CommandHistory CommandType = "history"
	CommandAdmin   CommandType = "admin"
	CommandCancel  CommandType = "cancel"
	CommandUnknown CommandType = "unknown"
)

// Command represents a parsed slash command.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// IsCommand reports whether the text looks like a slash command.
func IsCommand(message string) bool {
	return strings.HasPrefix(strings.TrimSpace(message), "/")
}

// ParseCommand derives a Command from message text. Group-style mentions
// such as /start@stock_bot are accepted.
func ParseCommand(message string) Command {
	normalized := strings.TrimSpace(strings.ToLower(message))
	cmd := Command{Raw: message, Type: CommandUnknown}

	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return cmd
	}

	head := strings.TrimPrefix(tokens[0], "/")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}

	switch CommandType(head) {
	case CommandStart, CommandHelp, CommandHistory, CommandAdmin, CommandCancel:
		cmd.Type = CommandType(head)
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}
