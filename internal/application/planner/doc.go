// Package planner sizes the worker pool for a workflow run.
//
// The width of a DAG's partial order (its maximum antichain) is the largest
// number of nodes that can ever be runnable at the same time, so it is the
// maximum useful degree of parallelism. By Dilworth's theorem the width
// equals |V| minus the size of a maximum matching in the bipartite graph
// whose left copy of u connects to the right copy of v iff v is reachable
// from u.
package planner
