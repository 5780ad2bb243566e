// Where: internal/infra/interaction/interaction.go
// What: Confirmation prompts and TTY detection.
// Why: Let provision ask before touching an account without blocking scripts.
package interaction

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// Confirmer asks a yes/no question.
type Confirmer interface {
	Confirm(title, description string) (bool, error)
}

// IsTerminal reports whether the file refers to a terminal device.
var IsTerminal = func(file *os.File) bool {
	if file == nil {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var runConfirmPrompt = func(title, description string, value *bool) error {
	return huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(value).
		Run()
}

// HuhConfirmer renders the question with huh.
type HuhConfirmer struct{}

// Confirm implements Confirmer.
func (HuhConfirmer) Confirm(title, description string) (bool, error) {
	var ok bool
	if err := runConfirmPrompt(title, description, &ok); err != nil {
		return false, fmt.Errorf("prompt confirm: %w", err)
	}
	return ok, nil
}

// LineConfirmer reads y/N from a reader. Used when huh cannot take over the
// terminal.
type LineConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// Confirm implements Confirmer.
func (c LineConfirmer) Confirm(title, description string) (bool, error) {
	message := title
	if strings.TrimSpace(description) != "" {
		message = title + " (" + description + ")"
	}
	return PromptYesNoWithIO(c.In, c.Out, message)
}

// PromptYesNoWithIO prints a confirmation prompt to out and reads the answer from in.
func PromptYesNoWithIO(in io.Reader, out io.Writer, message string) (bool, error) {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	reader := bufio.NewReader(in)
	_, _ = fmt.Fprintf(out, "%s [y/N]: ", message)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	trimmed := strings.TrimSpace(strings.ToLower(line))
	return trimmed == "y" || trimmed == "yes", nil
}

// DefaultConfirmer picks huh on a terminal and nil otherwise, so callers can
// require an explicit --yes in scripts.
func DefaultConfirmer() Confirmer {
	if IsTerminal(os.Stdin) && IsTerminal(os.Stderr) {
		return HuhConfirmer{}
	}
	return nil
}
