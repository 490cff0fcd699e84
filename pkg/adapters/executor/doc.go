// Package executor provides agent executor implementations.
//
// The factory creates executors based on provider configuration. Currently
// supports:
//   - Anthropic Claude
package executor
