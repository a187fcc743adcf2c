package plugins

import (
	"time"

	apperr "github.com/waveform-labs/pluginhost/internal/errors"
	"github.com/waveform-labs/pluginhost/internal/logger"
)

// handoffChannel is the per-load one-shot rendezvous a script plugin's
// executor delivers its instance over. It is never reused across loads and
// is torn down (closed) by loadScriptPlugin before that load call returns.
type handoffChannel struct {
	ch     chan PluginHandler
	closed bool
}

func newHandoffChannel() *handoffChannel {
	return &handoffChannel{ch: make(chan PluginHandler, 1)}
}

// register is the one host-provided binding the sandboxed executor sees.
// A second call (or a call after close) is silently dropped — only the
// first registration within the handoff window counts.
func (h *handoffChannel) register(instance PluginHandler) {
	defer func() { recover() }() // send on the channel after close
	select {
	case h.ch <- instance:
	default:
	}
}

func (h *handoffChannel) await(timeout time.Duration) (PluginHandler, bool) {
	select {
	case instance := <-h.ch:
		return instance, true
	case <-time.After(timeout):
		return nil, false
	}
}

// close releases the channel and any interpreter sandbox state. Safe to
// call more than once.
func (h *handoffChannel) close() {
	if h.closed {
		return
	}
	h.closed = true
	close(h.ch)
}

// ScriptExecutor is the restricted embedded evaluator a script plugin's
// entry artifact runs inside. It is handed exactly one binding — register
// — and must call it at most once with the instance the manifest's plugin
// implements. A real text-interpreting evaluator would parse source and
// expose register as its sole global; executors here are registered ahead
// of time by safe_name, the Go-native analogue of "the artifact's source
// happens to already be a compiled-in script".
type ScriptExecutor func(register func(PluginHandler))

var scriptExecutors = struct {
	entries map[string]ScriptExecutor
}{entries: make(map[string]ScriptExecutor)}

// RegisterScriptExecutor installs the executor a script plugin identified
// by safeName runs at load time. Intended to be called from an init()
// function the way builtin native plugins register their factory.
func RegisterScriptExecutor(safeName string, executor ScriptExecutor) {
	scriptExecutors.entries[safeName] = executor
}

// legacyGlobalRegistry is the well-known fallback name a script plugin may
// have populated instead of calling register directly, preserved as a
// narrow, explicitly logged compatibility path.
var legacyGlobalRegistry = struct {
	entries map[string]PluginHandler
}{entries: make(map[string]PluginHandler)}

// SetLegacyGlobal installs instance under the well-known legacy slot for
// safeName. A script plugin that predates the register() handoff calls
// this directly instead.
func SetLegacyGlobal(safeName string, instance PluginHandler) {
	legacyGlobalRegistry.entries[safeName] = instance
}

func popLegacyGlobal(safeName string) (PluginHandler, bool) {
	instance, ok := legacyGlobalRegistry.entries[safeName]
	if ok {
		delete(legacyGlobalRegistry.entries, safeName)
	}
	return instance, ok
}

// PurgeLegacyGlobal drops any stray legacy-global entry for safeName,
// called during unload's teardown step even though the ordinary load path
// already consumes it — belt-and-braces against a plugin that set the
// global without the runtime ever reading it back (e.g. a load that failed
// after the global was set).
func PurgeLegacyGlobal(safeName string) {
	delete(legacyGlobalRegistry.entries, safeName)
}

const defaultHandoffTimeout = 5 * time.Second

// loadScriptPlugin runs safeName's registered executor inside the handoff
// window, reads back the instance it (or a legacy global) delivered, and
// always tears down the channel before returning.
func loadScriptPlugin(safeName, pluginName string, timeout time.Duration) (PluginHandler, error) {
	if timeout <= 0 {
		timeout = defaultHandoffTimeout
	}

	handoff := newHandoffChannel()
	defer handoff.close()

	executor, ok := scriptExecutors.entries[safeName]
	if !ok {
		logger.Loader().Warn().Str("plugin", pluginName).Msg("no script executor registered, checking legacy global")
		if instance, ok := popLegacyGlobal(safeName); ok {
			return instance, nil
		}
		return nil, apperr.ModuleLoadFailed(nil)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Loader().Warn().Str("plugin", pluginName).Interface("panic", r).Msg("script executor panicked")
			}
		}()
		executor(handoff.register)
	}()

	instance, ok := handoff.await(timeout)
	if ok {
		return instance, nil
	}

	logger.Loader().Warn().Str("plugin", pluginName).Msg("handoff deadline passed, checking legacy global fallback")
	if instance, ok := popLegacyGlobal(safeName); ok {
		return instance, nil
	}
	return nil, apperr.HandoffTimeout(pluginName)
}
