// Package notify keeps lists of callbacks that are invoked synchronously, in
// subscription order.
package notify

import "sync"

type Handle uint64

type subscription[T any] struct {
	handle   Handle
	callback func(T)
}

type Observers[T any] struct {
	mu            sync.Mutex
	last          Handle
	subscriptions []subscription[T]
}

func (o *Observers[T]) Subscribe(callback func(T)) Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last++
	o.subscriptions = append(o.subscriptions, subscription[T]{handle: o.last, callback: callback})
	return o.last
}

// Unsubscribe reports whether the handle was subscribed.
func (o *Observers[T]) Unsubscribe(handle Handle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.subscriptions {
		if s.handle == handle {
			o.subscriptions = append(o.subscriptions[:i:i], o.subscriptions[i+1:]...)
			return true
		}
	}
	return false
}

// Notify calls every callback with value. Callbacks may subscribe or
// unsubscribe; the change applies from the next Notify.
func (o *Observers[T]) Notify(value T) {
	o.mu.Lock()
	callbacks := make([]func(T), len(o.subscriptions))
	for i, s := range o.subscriptions {
		callbacks[i] = s.callback
	}
	o.mu.Unlock()

	for _, callback := range callbacks {
		callback(value)
	}
}

func (o *Observers[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subscriptions)
}
