// Where: internal/infra/ui/console.go
// What: Console output helpers for invoicectl.
// Why: Keep step, summary and warning lines consistent across commands.
package ui

import (
	"fmt"
	"io"
	"strings"
)

// Console writes human-oriented output.
type Console struct {
	Out          io.Writer
	EmojiEnabled bool
}

// New creates a Console with emoji enabled.
func New(out io.Writer) *Console {
	return &Console{Out: out, EmojiEnabled: true}
}

// NewWithEmoji creates a Console with explicit emoji settings.
func NewWithEmoji(out io.Writer, enabled bool) *Console {
	return &Console{Out: out, EmojiEnabled: enabled}
}

// Header prints a section header.
func (c *Console) Header(emoji, title string) {
	fmt.Fprintf(c.Out, "%s%s\n", c.emojiPrefix(emoji), title)
}

// BlockStart prints a blank line followed by a header.
func (c *Console) BlockStart(emoji, title string) {
	fmt.Fprintln(c.Out)
	c.Header(emoji, title)
}

// BlockEnd closes a block with a blank line.
func (c *Console) BlockEnd() {
	fmt.Fprintln(c.Out)
}

// Item prints an indented key/value line.
func (c *Console) Item(key string, value any) {
	fmt.Fprintf(c.Out, "   %-24s %v\n", key+":", value)
}

// ItemPlain prints an indented line.
func (c *Console) ItemPlain(msg string) {
	fmt.Fprintf(c.Out, "   %s\n", msg)
}

// Step prints the outcome of one named step.
func (c *Console) Step(name, status, detail string) {
	line := fmt.Sprintf("   %-14s %-9s", name, status)
	if detail = strings.TrimSpace(detail); detail != "" {
		line += " " + detail
	}
	fmt.Fprintln(c.Out, strings.TrimRight(line, " "))
}

// Success prints a success line.
func (c *Console) Success(msg string) {
	fmt.Fprintf(c.Out, "%s%s\n", c.prefix("✅", "[ok] "), msg)
}

// Info prints a plain line.
func (c *Console) Info(msg string) {
	fmt.Fprintln(c.Out, msg)
}

// Warn prints a warning line.
func (c *Console) Warn(msg string) {
	fmt.Fprintf(c.Out, "%s%s\n", c.prefix("⚠️", "[warn] "), msg)
}

// Error prints a failure line.
func (c *Console) Error(msg string) {
	fmt.Fprintf(c.Out, "%s%s\n", c.prefix("✗", "[error] "), msg)
}

func (c *Console) prefix(emoji, fallback string) string {
	if p := c.emojiPrefix(emoji); p != "" {
		return p
	}
	return fallback
}

func (c *Console) emojiPrefix(emoji string) string {
	if !c.EmojiEnabled || strings.TrimSpace(emoji) == "" {
		return ""
	}
	return emoji + " "
}
