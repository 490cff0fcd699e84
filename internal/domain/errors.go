package domain

import "errors"

// Input errors. These must surface before any task is published.
var (
	ErrEmptyWorkflow    = errors.New("workflow must have at least one node")
	ErrDuplicateNode    = errors.New("duplicate node ID")
	ErrEmptyNodeID      = errors.New("node ID is required")
	ErrSelfEdge         = errors.New("edge connects a node to itself")
	ErrUnknownNode      = errors.New("edge references a node not in the workflow")
	ErrCyclicWorkflow   = errors.New("workflow contains a cycle")
	ErrNoSeedNodes      = errors.New("workflow has no zero-dependency node")
	ErrRunNotFound      = errors.New("run not found")
	ErrRunNotCancelable = errors.New("run already in a terminal state")
)
