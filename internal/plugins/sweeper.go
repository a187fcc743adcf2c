package plugins

import (
	"github.com/robfig/cron/v3"

	"github.com/waveform-labs/pluginhost/internal/logger"
)

// Sweeper runs cleanupDetachedResources on a cron schedule: belt-and-braces
// against a plugin that crashed mid-unload and left orphaned UI entries or
// resolver registrations behind. A panicking sweep is caught and logged so
// one bad run doesn't stop the schedule, the same recovery discipline the
// teacher wraps every scheduled job in.
type Sweeper struct {
	cron   *cron.Cron
	entry  cron.EntryID
}

// NewSweeper schedules fn at cronExpr on a dedicated cron.Cron instance and
// starts it immediately.
func NewSweeper(cronExpr string, fn func()) (*Sweeper, error) {
	c := cron.New()
	entry, err := c.AddFunc(cronExpr, wrapSweep(fn))
	if err != nil {
		return nil, err
	}
	c.Start()
	return &Sweeper{cron: c, entry: entry}, nil
}

func wrapSweep(fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Runtime().Warn().Interface("panic", r).Msg("sweep panicked")
			}
		}()
		fn()
	}
}

// Stop halts the sweeper's cron instance. The current sweep, if running, is
// allowed to finish.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// cleanupDetachedResources is the sweep body: it purges UI entries and
// resolver registrations whose owner is no longer a loaded plugin. Handoff
// channels need no equivalent sweep here since loadScriptPlugin tears its
// channel down synchronously before a load call returns (see
// loader_script.go) — there is never a persisted, potentially-orphaned
// handoff in this runtime's rendering of the mechanism.
func (r *Runtime) cleanupDetachedResources() {
	r.mu.RLock()
	loaded := make(map[string]bool, len(r.plugins))
	for name := range r.plugins {
		loaded[name] = true
	}
	r.mu.RUnlock()

	r.ui.PurgeUnlessOwnerIn(loaded)
	r.resolvers.PurgeUnlessOwnerIn(loaded)
}
