// Package workers implements the stateless worker pool.
//
// Each worker is an independent consumer in the shared task group: it polls
// the tasks stream, publishes a started event, invokes the agent executor,
// publishes the completed or failed event, and only then acknowledges the
// task offset. Workers hold no knowledge of the dependency graph.
//
// The health monitor tracks worker status and feeds the metrics collector.
package workers
