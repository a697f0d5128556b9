package device

import (
	"sync"

	"github.com/Skryldev/voiceclip/pkg/logger"
)

// NoopInhibitor satisfies ports.SleepInhibitor on hosts with nothing to
// inhibit. It tracks the hold so callers can log it.
type NoopInhibitor struct {
	mu   sync.Mutex
	held bool
	log  *logger.Logger
}

func NewNoopInhibitor(log *logger.Logger) *NoopInhibitor {
	return &NoopInhibitor{log: logger.OrNop(log).Named("inhibitor")}
}

func (n *NoopInhibitor) Inhibit() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.held {
		n.log.Debug("idle sleep inhibited")
	}
	n.held = true
}

func (n *NoopInhibitor) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.held {
		n.log.Debug("idle sleep released")
	}
	n.held = false
}

// Held reports whether Inhibit is in effect.
func (n *NoopInhibitor) Held() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.held
}
