package gpu

import (
	"fmt"

	"go.uber.org/zap"
)

// ErrorCheck polls the device for native errors when enabled. Every error is
// reported until MaxErrors is reached, then checking stops for the session.
type ErrorCheck struct {
	Enabled   bool
	MaxErrors int

	dev  Device
	log  *zap.Logger
	seen int
}

// NewErrorCheck returns an error checker over dev.
func NewErrorCheck(dev Device, log *zap.Logger, enabled bool, maxErrors int) *ErrorCheck {
	if log == nil {
		log = zap.NewNop()
	}
	return &ErrorCheck{Enabled: enabled, MaxErrors: maxErrors, dev: dev, log: log}
}

// Check drains pending native errors, logging each with site. It returns the
// number of errors drained.
func (c *ErrorCheck) Check(site string) int {
	if c == nil || !c.Enabled {
		return 0
	}
	n := 0
	for code := c.dev.GetError(); code != 0; code = c.dev.GetError() {
		n++
		c.seen++
		c.log.Error("gl error", zap.String("site", site), zap.String("code", fmt.Sprintf("0x%04x", code)))
		if c.MaxErrors > 0 && c.seen >= c.MaxErrors {
			c.log.Warn("error limit reached, disabling error checks", zap.Int("max_errors", c.MaxErrors))
			c.Enabled = false
			break
		}
	}
	return n
}

// Seen returns the number of errors reported this session.
func (c *ErrorCheck) Seen() int { return c.seen }
