package device

import (
	"strings"
	"unicode/utf8"
)

type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandSetIndicator
)

func (k CommandKind) String() string {
	switch k {
	case CommandSetIndicator:
		return "set_indicator"
	default:
		return "unknown"
	}
}

// Command is a decoded downlink message.
type Command struct {
	Kind      CommandKind
	Indicator bool
}

func (c Command) String() string {
	if c.Kind == CommandSetIndicator {
		return "set_indicator:" + string(ColorOf(c.Indicator))
	}
	return c.Kind.String()
}

// ParseCommand decodes a downlink payload. "green" and "red" are matched
// case-insensitively; any other text, including bytes that are not valid
// UTF-8, is CommandUnknown.
func ParseCommand(payload []byte) Command {
	if !utf8.Valid(payload) {
		return Command{Kind: CommandUnknown}
	}
	text := string(payload)
	switch {
	case strings.EqualFold(text, string(ColorGreen)):
		return Command{Kind: CommandSetIndicator, Indicator: true}
	case strings.EqualFold(text, string(ColorRed)):
		return Command{Kind: CommandSetIndicator, Indicator: false}
	default:
		return Command{Kind: CommandUnknown}
	}
}

// Apply mutates s according to c and reports whether the state was written.
// Unknown commands leave s untouched.
func (c Command) Apply(s *State) bool {
	if c.Kind != CommandSetIndicator {
		return false
	}
	s.SetIndicator(c.Indicator)
	return true
}
