package engine

import "fmt"

// DefaultMaxRerenders is the number of extra render calls a boundary gets
// when it changes its own state while rendering.
const DefaultMaxRerenders = 1

// rerenderBudget bounds the render loop of a single boundary update.
//
// The first render is free; every render triggered by a state change made
// during the previous render spends one unit. When the budget is spent the
// loop stops and keeps the latest output.
type rerenderBudget struct {
	max     int
	renders int
}

func newRerenderBudget(max int) *rerenderBudget {
	if max < 0 {
		max = 0
	}
	return &rerenderBudget{max: max}
}

// Render records a render call.
func (r *rerenderBudget) Render() { r.renders++ }

// Allow reports whether another render may run.
func (r *rerenderBudget) Allow() bool { return r.renders <= r.max }

// Renders returns the number of render calls made so far.
func (r *rerenderBudget) Renders() int { return r.renders }

// RerenderCapExceeded describes a render loop stopped by the cap. It is a
// diagnostic, logged and passed to hooks, never returned as a pass error.
type RerenderCapExceeded struct {
	Boundary string
	Renders  int
	Limit    int
}

// Error implements the error interface.
func (e *RerenderCapExceeded) Error() string {
	return fmt.Sprintf("boundary %s kept changing state while rendering: %d renders, limit %d extra",
		e.Boundary, e.Renders, e.Limit)
}
