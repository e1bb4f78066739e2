// Package events defines the scheduling events emitted on the event bus.
//
// Available event types:
//   - ResolveEvent: outcome of a full resolve
//   - MoveEvent: a validated or rejected single-cell move
//   - OverrideEvent: a force-override commit with its justification
package events
