// Package domain defines the core types shared across the weft engine:
// workflows (nodes + dependency edges), the task and event messages exchanged
// over the broker, and run-level state and results.
package domain
