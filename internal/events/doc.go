// Package events lets services announce what happened without knowing who
// listens. The transfer orchestrator emits TypeTransferCompleted after each
// committed transfer; handlers write an audit log line and append the event
// to a Redis stream.
package events
