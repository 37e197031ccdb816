package signalbus

import (
	"reflect"
	"slices"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/krew-solutions/ascetic-signalbus-go/asceticsignals/disposable"
)

// subscription is the identity of a single Subscribe call. Scopes and the disposables
// returned by Subscribe remove entries by subscription, never by handler id.
type subscription struct {
	signalType reflect.Type
	id         any
}

type subscriberEntry struct {
	sub    *subscription
	invoke func(signal any) error
}

type Bus struct {
	mu          sync.Mutex
	subscribers map[reflect.Type][]subscriberEntry
	logger      *zap.Logger
	metrics     *Metrics
	isolate     bool
}

func New(options ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[reflect.Type][]subscriberEntry),
		logger:      zap.NewNop(),
	}
	for _, option := range options {
		option(b)
	}
	return b
}

func (b *Bus) CreateScope() *Scope {
	return newScope(b)
}

// Topics returns the number of signal types that currently have at least one handler.
func (b *Bus) Topics() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Bus) subscribe(entry subscriberEntry) {
	signalType := entry.sub.signalType
	b.mu.Lock()
	b.subscribers[signalType] = append(b.subscribers[signalType], entry)
	count := len(b.subscribers[signalType])
	b.metrics.setSubscribers(signalType, count)
	b.mu.Unlock()

	b.logger.Debug("signal handler subscribed",
		zap.String("signal", signalType.String()),
		zap.Int("handlers", count),
	)
}

// unsubscribe removes the first entry with the given handler id and reports whether one
// was found.
func (b *Bus) unsubscribe(signalType reflect.Type, id any) bool {
	return b.removeFirst(signalType, func(e subscriberEntry) bool { return e.sub.id == id })
}

func (b *Bus) remove(sub *subscription) bool {
	return b.removeFirst(sub.signalType, func(e subscriberEntry) bool { return e.sub == sub })
}

// removeFirst deletes the first matching entry. The key is deleted together with its
// last entry.
func (b *Bus) removeFirst(signalType reflect.Type, match func(subscriberEntry) bool) bool {
	b.mu.Lock()
	entries := b.subscribers[signalType]
	i := slices.IndexFunc(entries, match)
	if i < 0 {
		b.mu.Unlock()
		return false
	}
	entries = slices.Delete(entries, i, i+1)
	if len(entries) == 0 {
		delete(b.subscribers, signalType)
	} else {
		b.subscribers[signalType] = entries
	}
	count := len(entries)
	b.metrics.setSubscribers(signalType, count)
	b.mu.Unlock()

	b.logger.Debug("signal handler unsubscribed",
		zap.String("signal", signalType.String()),
		zap.Int("handlers", count),
	)
	return true
}

// snapshot copies the handler list so that handlers may change subscriptions while
// being dispatched without affecting the current publish.
func (b *Bus) snapshot(signalType reflect.Type) []subscriberEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.subscribers[signalType])
}

func (b *Bus) dispatch(signalType reflect.Type, snapshot []subscriberEntry, signal any) error {
	for _, entry := range snapshot {
		b.metrics.observeDelivery(signalType)
		if err := entry.invoke(signal); err != nil {
			b.metrics.observeFailure(signalType)
			return err
		}
	}
	return nil
}

func (b *Bus) dispatchIsolated(signalType reflect.Type, snapshot []subscriberEntry, signal any) error {
	var result error
	for position, entry := range snapshot {
		b.metrics.observeDelivery(signalType)
		if err := invokeRecovering(signalType, entry, signal); err != nil {
			b.metrics.observeFailure(signalType)
			b.logger.Warn("signal handler failed",
				zap.String("signal", signalType.String()),
				zap.Int("position", position),
				zap.Error(err),
			)
			result = multierror.Append(result, err)
		}
	}
	return result
}

func invokeRecovering(signalType reflect.Type, entry subscriberEntry, signal any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrHandlerPanicked, "%v: %v", signalType, r)
		}
	}()
	return entry.invoke(signal)
}

// --- Typed free functions ---

// Subscribe appends handler to the handlers of signal type T on s, which is either a
// *Bus or a *Scope. The same handler may be subscribed several times; each
// subscription is invoked once per Publish.
//
// For Unsubscribe, handlers are identified by their code pointer unless handlerID is
// given. Closures created from the same function literal share a code pointer, so pass
// an explicit id when such closures have to be told apart on Unsubscribe. Subscribe
// panics if handlerID is not comparable.
//
// The returned Disposable removes exactly this subscription, once. Scope.Dispose does
// the same for every subscription made through the scope.
func Subscribe[T any](s Subscriber, handler Handler[T], handlerID ...any) disposable.Disposable {
	id := resolveID(handler, handlerID)
	if !isComparable(id) {
		panic(errors.Errorf("signalbus: handler id of type %T is not comparable", id))
	}
	sub := &subscription{signalType: reflect.TypeFor[T](), id: id}
	s.subscribe(subscriberEntry{
		sub: sub,
		invoke: func(signal any) error {
			typed, _ := signal.(T)
			return handler(typed)
		},
	})
	return disposable.NewDisposable(func() {
		s.remove(sub)
	})
}

// Unsubscribe removes the first subscription of handler for signal type T.
// Unknown handlers, and ids that could never have been subscribed, are ignored.
func Unsubscribe[T any](s Subscriber, handler Handler[T], handlerID ...any) {
	id := resolveID(handler, handlerID)
	if !isComparable(id) {
		return
	}
	s.unsubscribe(reflect.TypeFor[T](), id)
}

// Publish invokes, in subscription order, every handler subscribed to T at the moment of
// the call. By default the first failing handler stops the dispatch and its error is
// returned as is; see WithErrorIsolation.
func Publish[T any](b *Bus, signal T) error {
	signalType := reflect.TypeFor[T]()
	b.metrics.observePublish(signalType)
	snapshot := b.snapshot(signalType)
	if len(snapshot) == 0 {
		return nil
	}
	if b.isolate {
		return b.dispatchIsolated(signalType, snapshot, signal)
	}
	return b.dispatch(signalType, snapshot, signal)
}

func SubscriberCount[T any](b *Bus) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[reflect.TypeFor[T]()])
}

func resolveID[T any](handler Handler[T], handlerID []any) any {
	if len(handlerID) > 0 {
		return handlerID[0]
	}
	return makeID(handler)
}

func isComparable(id any) bool {
	return id == nil || reflect.TypeOf(id).Comparable()
}

func makeID[T any](handler Handler[T]) uintptr {
	return reflect.ValueOf(handler).Pointer()
}
