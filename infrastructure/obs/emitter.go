package obs

import (
	"sort"
	"sync"

	"tourney-media/domain/mixer"
)

// Emitter dispatches named events to registered handlers. Handlers run on
// the emitting goroutine, outside the emitter's lock, in registration order.
type Emitter struct {
	mu       sync.Mutex
	next     mixer.ListenerID
	handlers map[string]map[mixer.ListenerID]listener
}

type listener struct {
	handler mixer.EventHandler
	once    bool
}

// NewEmitter creates an empty emitter
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string]map[mixer.ListenerID]listener)}
}

// On registers handler for every occurrence of event
func (e *Emitter) On(event string, handler mixer.EventHandler) mixer.ListenerID {
	return e.add(event, handler, false)
}

// Once registers handler for the next occurrence of event only
func (e *Emitter) Once(event string, handler mixer.EventHandler) mixer.ListenerID {
	return e.add(event, handler, true)
}

// Off removes a handler. Unknown ids are ignored.
func (e *Emitter) Off(event string, id mixer.ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers[event], id)
}

// Emit delivers ev to the handlers registered for ev.Name
func (e *Emitter) Emit(ev mixer.Event) {
	e.mu.Lock()
	registered := e.handlers[ev.Name]
	ids := make([]mixer.ListenerID, 0, len(registered))
	for id := range registered {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	handlers := make([]mixer.EventHandler, 0, len(ids))
	for _, id := range ids {
		l := registered[id]
		handlers = append(handlers, l.handler)
		if l.once {
			delete(registered, id)
		}
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (e *Emitter) add(event string, handler mixer.EventHandler, once bool) mixer.ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	if e.handlers[event] == nil {
		e.handlers[event] = make(map[mixer.ListenerID]listener)
	}
	e.handlers[event][e.next] = listener{handler: handler, once: once}
	return e.next
}
