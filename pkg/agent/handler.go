package agent

import (
	"fmt"

	"github.com/satchel-sh/satchel/pkg/presenter"
)

// PresenterHandler renders model output through the shared presenter so the
// run output respects color and quiet settings.
type PresenterHandler struct {
	// ShowToolDetail also prints tool inputs and results, not just the
	// tool names.
	ShowToolDetail bool
}

// HandleText prints an assistant text block.
func (h *PresenterHandler) HandleText(text string) {
	presenter.Info(text)
}

// HandleToolUse prints a tool invocation.
func (h *PresenterHandler) HandleToolUse(toolName string, input string) {
	if h.ShowToolDetail {
		presenter.Info(fmt.Sprintf("Using tool %s: %s", toolName, input))
		return
	}
	presenter.Info(fmt.Sprintf("Using tool %s", toolName))
}

// HandleToolResult prints a tool result when detail output is enabled.
func (h *PresenterHandler) HandleToolResult(toolName string, result string) {
	if h.ShowToolDetail {
		presenter.Info(result)
	}
}

// HandleDone marks the end of the run. The command layer owns the closing
// summary, so nothing is printed here.
func (h *PresenterHandler) HandleDone() {}
