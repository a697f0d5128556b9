package state

import (
	"errors"
	"sync"
)

// ErrNoCategory is returned by Subscribe for a value that implements no
// observer interface.
var ErrNoCategory = errors.New("value implements no observer category")

type entry[T any] struct {
	id  uint64
	obs T
}

// registry keeps observers per category in registration order.
type registry struct {
	mu     sync.RWMutex
	nextID uint64

	playback   []entry[PlaybackObserver]
	recorder   []entry[RecorderObserver]
	cropper    []entry[CropperObserver]
	cutter     []entry[CutterObserver]
	inserter   []entry[InserterObserver]
	jobs       []entry[TranscriptionJobObserver]
	transcript []entry[TranscriptObserver]
}

func (r *registry) add(v any) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	matched := false
	if o, ok := v.(PlaybackObserver); ok {
		r.playback = append(r.playback, entry[PlaybackObserver]{id, o})
		matched = true
	}
	if o, ok := v.(RecorderObserver); ok {
		r.recorder = append(r.recorder, entry[RecorderObserver]{id, o})
		matched = true
	}
	if o, ok := v.(CropperObserver); ok {
		r.cropper = append(r.cropper, entry[CropperObserver]{id, o})
		matched = true
	}
	if o, ok := v.(CutterObserver); ok {
		r.cutter = append(r.cutter, entry[CutterObserver]{id, o})
		matched = true
	}
	if o, ok := v.(InserterObserver); ok {
		r.inserter = append(r.inserter, entry[InserterObserver]{id, o})
		matched = true
	}
	if o, ok := v.(TranscriptionJobObserver); ok {
		r.jobs = append(r.jobs, entry[TranscriptionJobObserver]{id, o})
		matched = true
	}
	if o, ok := v.(TranscriptObserver); ok {
		r.transcript = append(r.transcript, entry[TranscriptObserver]{id, o})
		matched = true
	}
	if !matched {
		return 0, ErrNoCategory
	}
	return id, nil
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playback = without(r.playback, id)
	r.recorder = without(r.recorder, id)
	r.cropper = without(r.cropper, id)
	r.cutter = without(r.cutter, id)
	r.inserter = without(r.inserter, id)
	r.jobs = without(r.jobs, id)
	r.transcript = without(r.transcript, id)
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[uint64]struct{})
	for _, group := range [][]uint64{
		ids(r.playback), ids(r.recorder), ids(r.cropper), ids(r.cutter),
		ids(r.inserter), ids(r.jobs), ids(r.transcript),
	} {
		for _, id := range group {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

// without returns a new slice so snapshots held by deliveries stay intact.
func without[T any](list []entry[T], id uint64) []entry[T] {
	out := make([]entry[T], 0, len(list))
	for _, e := range list {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}

func ids[T any](list []entry[T]) []uint64 {
	out := make([]uint64, len(list))
	for i, e := range list {
		out[i] = e.id
	}
	return out
}

func snapshot[T any](r *registry, list *[]entry[T]) []entry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	reg  *registry
	id   uint64
	once sync.Once
}

// Unsubscribe stops future deliveries. It is safe to call more than once. A
// notification already being delivered may still arrive.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.reg.remove(s.id) })
}
