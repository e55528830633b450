package librarian

import (
	"sync"

	"github.com/agentstation/librarian/pkg/report"
)

// StageHook is called with each sealed stage report as soon as the stage ends.
type StageHook func(rep *report.Report)

type hooks struct {
	mu      sync.RWMutex
	onStage []StageHook
}

// OnStage registers a callback for completed stages.
func (h *hooks) OnStage(fn StageHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStage = append(h.onStage, fn)
}

func (h *hooks) stageDone(rep *report.Report) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onStage {
		fn(rep)
	}
}
