package signalbus

import (
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scope tracks the subscriptions made through it so that Dispose can revoke all of
// them from the bus at once. A disposed scope may be reused; new subscriptions are
// tracked again.
type Scope struct {
	id      uuid.UUID
	bus     *Bus
	mu      sync.Mutex
	tracked map[reflect.Type][]*subscription
}

func newScope(bus *Bus) *Scope {
	s := &Scope{
		id:      uuid.New(),
		bus:     bus,
		tracked: make(map[reflect.Type][]*subscription),
	}
	bus.logger.Debug("signal scope created", zap.Stringer("scope", s.id))
	return s
}

func (s *Scope) ID() uuid.UUID {
	return s.id
}

// Len returns the number of subscriptions currently tracked by the scope.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, subs := range s.tracked {
		n += len(subs)
	}
	return n
}

// subscribe holds the scope lock until the bus has the entry, so a concurrent Dispose
// either sees both the record and the bus entry or neither.
func (s *Scope) subscribe(entry subscriberEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	signalType := entry.sub.signalType
	s.tracked[signalType] = append(s.tracked[signalType], entry.sub)
	s.bus.subscribe(entry)
}

// unsubscribe removes the first subscription of the scope with the given handler id.
// When the scope tracks none, it is forwarded to the bus as a plain unsubscribe.
func (s *Scope) unsubscribe(signalType reflect.Type, id any) bool {
	s.mu.Lock()
	subs := s.tracked[signalType]
	i := slices.IndexFunc(subs, func(sub *subscription) bool { return sub.id == id })
	var sub *subscription
	if i >= 0 {
		sub = subs[i]
		s.untrack(signalType, i)
	}
	s.mu.Unlock()

	if sub != nil {
		return s.bus.remove(sub)
	}
	return s.bus.unsubscribe(signalType, id)
}

func (s *Scope) remove(sub *subscription) bool {
	s.mu.Lock()
	if i := slices.Index(s.tracked[sub.signalType], sub); i >= 0 {
		s.untrack(sub.signalType, i)
	}
	s.mu.Unlock()
	return s.bus.remove(sub)
}

func (s *Scope) untrack(signalType reflect.Type, i int) {
	subs := slices.Delete(s.tracked[signalType], i, i+1)
	if len(subs) == 0 {
		delete(s.tracked, signalType)
	} else {
		s.tracked[signalType] = subs
	}
}

// Dispose removes every subscription made through the scope from the bus and forgets
// them. Subscriptions made elsewhere with the same handler are left alone. Calling it
// again, or after some subscriptions were removed from the bus directly, is harmless.
func (s *Scope) Dispose() {
	s.mu.Lock()
	tracked := s.tracked
	s.tracked = make(map[reflect.Type][]*subscription)
	s.mu.Unlock()

	if len(tracked) == 0 {
		return
	}
	total, removed := 0, 0
	for _, subs := range tracked {
		for _, sub := range subs {
			total++
			if s.bus.remove(sub) {
				removed++
			}
		}
	}
	s.bus.logger.Debug("signal scope disposed",
		zap.Stringer("scope", s.id),
		zap.Int("tracked", total),
		zap.Int("removed", removed),
	)
}

// WithScope runs fn with a fresh scope of b and disposes the scope however fn exits,
// panics included.
func WithScope(b *Bus, fn func(scope *Scope) error) error {
	scope := b.CreateScope()
	defer scope.Dispose()
	return fn(scope)
}
