// Package scheduler drives the periodic sweeps.
//
// A Runner publishes a job per schedule tick (joins every 2 minutes,
// completions every 5 minutes, calendar sync every 15 minutes by default)
// and a queue.Worker hands each job to the Dispatcher. The Dispatcher walks
// all users sequentially, collects per-user failures into the sweep result
// and re-submits the whole sweep, up to three times a minute apart, only
// when the sweep could not run at all.
//
// Overlapping sweeps are safe without locks because every lifecycle
// operation checks the stored or provider state before acting.
package scheduler
