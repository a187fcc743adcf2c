package plugins

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	apperr "github.com/waveform-labs/pluginhost/internal/errors"
	"github.com/waveform-labs/pluginhost/internal/logger"
)

// EventHandler receives an emitted event's payload. A handler that panics
// or returns an error is caught and logged; it never prevents delivery to
// other listeners of the same event.
type EventHandler func(data interface{}) error

// RequestHandler answers a plugin-to-plugin request and returns its result.
type RequestHandler func(data interface{}) (interface{}, error)

type subscription struct {
	owner   string
	handler EventHandler
	once    bool
}

// EventBus is C5: a single emitter shared by every plugin and by the host,
// plus the request/response rendezvous channel that underlies plugin-to-
// plugin RPC.
type EventBus struct {
	mu   sync.RWMutex
	subs map[string][]*subscription // eventName -> ordered subscriptions

	reqMu    sync.RWMutex
	handlers map[string]requestRegistration // requestName -> handler + owner

	tapMu sync.RWMutex
	taps  []func(eventName string, data interface{})
}

// Tap registers fn to observe every event Emit delivers, independent of any
// plugin subscription. Used by the devtools inspector's websocket feed; it
// never affects delivery to ordinary listeners and a panicking tap is
// caught the same way a listener's is.
func (b *EventBus) Tap(fn func(eventName string, data interface{})) {
	b.tapMu.Lock()
	defer b.tapMu.Unlock()
	b.taps = append(b.taps, fn)
}

type requestRegistration struct {
	owner   string
	handler RequestHandler
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subs:     make(map[string][]*subscription),
		handlers: make(map[string]requestRegistration),
	}
}

// On registers a handler owned by pluginName for eventName, delivered until
// explicitly removed.
func (b *EventBus) On(eventName, pluginName string, handler EventHandler) {
	b.add(eventName, pluginName, handler, false)
}

// Once registers a handler that is removed before its own first invocation.
func (b *EventBus) Once(eventName, pluginName string, handler EventHandler) {
	b.add(eventName, pluginName, handler, true)
}

func (b *EventBus) add(eventName, pluginName string, handler EventHandler, once bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], &subscription{owner: pluginName, handler: handler, once: once})
}

// Off removes every subscription pluginName holds on eventName.
func (b *EventBus) Off(eventName, pluginName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[eventName][:0]
	for _, s := range b.subs[eventName] {
		if s.owner != pluginName {
			kept = append(kept, s)
		}
	}
	b.subs[eventName] = kept
}

// RemovePluginListeners detaches every subscription owned by pluginName,
// across every event name, in a single pass. Used by C12 on unload.
func (b *EventBus) RemovePluginListeners(pluginName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for eventName, subs := range b.subs {
		kept := subs[:0]
		for _, s := range subs {
			if s.owner != pluginName {
				kept = append(kept, s)
			}
		}
		b.subs[eventName] = kept
	}
}

// Emit delivers data to every listener of eventName in registration order.
// Listeners are called one after another, each inside its own panic
// recovery, so a failing listener cannot break delivery to later listeners;
// `once` listeners are removed before any listener runs, and Emit returns
// only after every listener has run, so events emitted synchronously from a
// host action are delivered before the triggering call returns.
func (b *EventBus) Emit(eventName string, data interface{}) {
	b.tapMu.RLock()
	taps := append([]func(string, interface{}){}, b.taps...)
	b.tapMu.RUnlock()
	for _, tap := range taps {
		func() {
			defer func() { recover() }()
			tap(eventName, data)
		}()
	}

	b.mu.Lock()
	subs := append([]*subscription(nil), b.subs[eventName]...)
	remaining := make([]*subscription, 0, len(subs))
	for _, s := range subs {
		if !s.once {
			remaining = append(remaining, s)
		}
	}
	b.subs[eventName] = remaining
	b.mu.Unlock()

	for _, s := range subs {
		func(s *subscription) {
			defer func() {
				if r := recover(); r != nil {
					logger.Events().Warn().Str("event", eventName).Str("owner", s.owner).
						Interface("panic", r).Msg("listener panicked")
				}
			}()
			if err := s.handler(data); err != nil {
				logger.Events().Warn().Str("event", eventName).Str("owner", s.owner).
					Err(err).Msg("listener returned an error")
			}
		}(s)
	}
}

// HandleRequest registers the single handler pluginName answers requestName
// with. A second registration for the same name by the same or a different
// plugin replaces the first, mirroring "at most one handler per named
// request".
func (b *EventBus) HandleRequest(requestName, pluginName string, handler RequestHandler) {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()
	b.handlers[requestName] = requestRegistration{owner: pluginName, handler: handler}
}

// RemovePluginRequestHandlers removes every request handler owned by
// pluginName. Used by C12 on unload.
func (b *EventBus) RemovePluginRequestHandlers(pluginName string) {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()
	for name, reg := range b.handlers {
		if reg.owner == pluginName {
			delete(b.handlers, name)
		}
	}
}

// RequestOwner returns the plugin name that owns the handler for
// requestName, or "" if none is registered. Used by C10 to find the callee
// before checking cross-plugin access.
func (b *EventBus) RequestOwner(requestName string) (string, bool) {
	b.reqMu.RLock()
	defer b.reqMu.RUnlock()
	reg, ok := b.handlers[requestName]
	return reg.owner, ok
}

// Request invokes the registered handler for requestName and returns its
// result. Requests to unregistered names fail immediately with a
// recognisable error; the caller's correlation id is logged for tracing
// through the devtools inspector but has no bearing on dispatch.
func (b *EventBus) Request(requestName string, data interface{}) (interface{}, error) {
	b.reqMu.RLock()
	reg, ok := b.handlers[requestName]
	b.reqMu.RUnlock()

	correlationID := uuid.NewString()
	if !ok {
		logger.Events().Warn().Str("request", requestName).Str("correlation_id", correlationID).
			Msg("request to unregistered handler")
		return nil, apperr.New("REQUEST_NO_HANDLER", fmt.Sprintf("no handler registered for request %q", requestName))
	}

	logger.Events().Debug().Str("request", requestName).Str("owner", reg.owner).
		Str("correlation_id", correlationID).Msg("dispatching request")

	return reg.handler(data)
}
