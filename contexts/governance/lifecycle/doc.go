// Package lifecycle drives the election state machine: committee setup while
// the election is a draft, the start path that snapshots the voting email and
// issues credentials, the single close path that anonymizes credentials and
// scrubs the mail queue, the tally handoff, soft deletion and the scheduled
// sweep. Transitions are forward-only and conditional on the expected current
// status.
package lifecycle
