package broker

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/multierr"

	"delaybroker/pkg/message"
)

// Observer receives a notification for every delivered message, whoever
// sent it. Observers that only care about their own messages must filter.
//
// Observers are kept in a set keyed by the Observer value itself, so the
// dynamic type must be comparable (a pointer, typically). Registering an
// uncomparable value fails with ErrUncomparableObserver.
type Observer interface {
	Notify(ctx context.Context, msg message.Message, delay time.Duration) error
}

// RegisterObserver adds o to the notification set. Registering the same
// observer again has no effect.
func (b *Broker) RegisterObserver(o Observer) error {
	if o == nil {
		return ErrNilObserver
	}
	if !reflect.TypeOf(o).Comparable() {
		return fmt.Errorf("%w: %T", ErrUncomparableObserver, o)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[o] = struct{}{}
	return nil
}

// UnregisterObserver removes o from the notification set, if present.
func (b *Broker) UnregisterObserver(o Observer) {
	if o == nil || !reflect.TypeOf(o).Comparable() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.observers, o)
}

// Observers returns the number of registered observers.
func (b *Broker) Observers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

// notify calls every registered observer. A failing or panicking observer
// does not stop the others; all failures are combined into the result.
func (b *Broker) notify(ctx context.Context, msg message.Message, delay time.Duration) error {
	b.mu.RLock()
	observers := make([]Observer, 0, len(b.observers))
	for o := range b.observers {
		observers = append(observers, o)
	}
	b.mu.RUnlock()

	var err error
	for _, o := range observers {
		if e := notifyOne(ctx, o, msg, delay); e != nil {
			err = multierr.Append(err, fmt.Errorf("observer %T: %w", o, e))
		}
	}
	return err
}

func notifyOne(ctx context.Context, o Observer, msg message.Message, delay time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrObserverPanic, r)
		}
	}()
	return o.Notify(ctx, msg, delay)
}
