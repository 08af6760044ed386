package commandqueue

import "sync/atomic"

// ControlState holds the cooperative flags shared between callers and the worker loop.
// Any goroutine may set them; the worker reads them once per iteration.
type ControlState struct {
	shouldStop atomic.Bool
	skip       atomic.Bool
	processing atomic.Bool
}

// RequestStop asks the worker to exit after its current iteration.
func (c *ControlState) RequestStop() {
	c.shouldStop.Store(true)
}

// ShouldStop reports whether a stop was requested.
func (c *ControlState) ShouldStop() bool {
	return c.shouldStop.Load()
}

// RequestSkip asks the worker to abandon the command it is processing.
func (c *ControlState) RequestSkip() {
	c.skip.Store(true)
}

// SkipRequested reports whether the current command should be skipped.
func (c *ControlState) SkipRequested() bool {
	return c.skip.Load()
}

// ShouldSkip reports whether further work on the current command must stop,
// either because it was skipped or because the worker is stopping.
func (c *ControlState) ShouldSkip() bool {
	return c.skip.Load() || c.shouldStop.Load()
}

// Processing reports whether a command is being processed.
func (c *ControlState) Processing() bool {
	return c.processing.Load()
}

// BeginCommand marks the start of a command and clears any stale skip request.
func (c *ControlState) BeginCommand() {
	c.skip.Store(false)
	c.processing.Store(true)
}

// EndCommand marks the worker idle.
func (c *ControlState) EndCommand() {
	c.processing.Store(false)
}
