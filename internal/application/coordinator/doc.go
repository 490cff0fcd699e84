// Package coordinator is the top-level entry point for workflow runs.
//
// For each run it sizes a worker pool from the workflow's width, starts the
// pool and one orchestrator, waits for completion bounded by the run
// timeout, then shuts the pool down with a grace period. It also tracks
// active runs for cancellation and persists run snapshots for the API
// surface.
package coordinator
