package tui

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clmpro/clmsetup/internal/logging"
)

// boundary holds a recovered step failure. It is shared by pointer between
// model copies so a panic caught in View is visible to the next Update.
type boundary struct {
	err string
}

func (b *boundary) failed() bool { return b != nil && b.err != "" }

func (b *boundary) reset() {
	if b != nil {
		b.err = ""
	}
}

func (b *boundary) catch(r any) {
	b.err = fmt.Sprint(r)
	logging.Error("Recovered panic in wizard step",
		zap.String("panic", b.err),
		zap.Stack("stack"),
	)
}

// guard renders fn, or the failure panel if fn panics.
func (b *boundary) guard(fn func() string) (out string) {
	if b.failed() {
		return renderFailurePanel()
	}
	defer func() {
		if r := recover(); r != nil {
			b.catch(r)
			out = renderFailurePanel()
		}
	}()
	return fn()
}

func renderFailurePanel() string {
	var b strings.Builder
	b.WriteString(RenderError("Something went wrong"))
	b.WriteString("\n\n")
	b.WriteString("  This step hit an unexpected problem. Your progress is saved.\n\n")
	b.WriteString(MenuItemStyle.Render("  r - Try again"))
	b.WriteString("\n")
	b.WriteString(MenuItemStyle.Render("  q - Exit application"))
	b.WriteString("\n")
	return b.String()
}
