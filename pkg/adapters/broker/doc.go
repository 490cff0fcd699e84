// Package broker provides message broker implementations.
//
// Implementations:
//   - redis: Redis Streams with consumer groups and manual acknowledgement
//   - memory: In-memory for testing
package broker
