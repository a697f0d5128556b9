package state

import (
	"fmt"
	"sync"

	"github.com/Skryldev/voiceclip/pkg/logger"
	"go.uber.org/zap"
)

// serialQueue runs deliveries one at a time in submission order. The first
// submitter drains the queue on its own goroutine; submissions made while a
// drain is running, including ones from inside a callback, are appended and
// run by that drain.
type serialQueue struct {
	mu       sync.Mutex
	pending  []func()
	draining bool
	log      *logger.Logger
}

func (q *serialQueue) submit(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true

	for len(q.pending) > 0 {
		next := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()
		q.call(next)
		q.mu.Lock()
	}
	q.draining = false
	q.mu.Unlock()
}

func (q *serialQueue) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("observer panicked", zap.String("panic", fmt.Sprint(r)), zap.Stack("stack"))
		}
	}()
	fn()
}
