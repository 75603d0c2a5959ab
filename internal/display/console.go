package display

import (
	"log/slog"
	"sync"
)

// Console logs display writes. It stands in for the LCD on hosts without
// one and remembers the last state for the status API.
type Console struct {
	logger *slog.Logger

	mu    sync.Mutex
	text  string
	color Indicator
}

func NewConsole(logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{logger: logger}
}

func (c *Console) SetText(text string) error {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
	c.logger.Debug("display text", "text", text)
	return nil
}

func (c *Console) SetColor(ind Indicator) error {
	c.mu.Lock()
	changed := c.color != ind
	c.color = ind
	c.mu.Unlock()
	if changed {
		c.logger.Info("display color", "color", ind.String())
	}
	return nil
}

// Snapshot returns the last text and color written.
func (c *Console) Snapshot() (string, Indicator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.color
}
