package signalbus

import "reflect"

// Handler receives signals of type T. A non-nil error is reported to the publisher.
type Handler[T any] = func(signal T) error

// Subscriber is implemented by *Bus and *Scope. It lets the typed free functions
// Subscribe and Unsubscribe work against either of them.
type Subscriber interface {
	subscribe(entry subscriberEntry)
	unsubscribe(signalType reflect.Type, id any) bool
	remove(sub *subscription) bool
}
