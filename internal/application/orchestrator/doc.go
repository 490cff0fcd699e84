// Package orchestrator implements the per-run control loop for DAG execution.
//
// One orchestrator instance owns one run: it builds the dependency graph,
// publishes tasks for zero-dependency nodes, consumes worker events scoped to
// its run, fans dependent tasks out as their inputs arrive, and detects
// completion. All run state is mutated on the orchestrator's single control
// goroutine, so no locking is needed on the dependency maps.
//
// The validator rejects malformed workflows (empty node sets, self-edges,
// unknown edge endpoints, cycles) before any task is published.
package orchestrator
