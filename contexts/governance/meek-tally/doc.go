// Package meektally holds the pure Meek STV counting engine for governance
// elections. The engine has no I/O and no module dependencies so a third
// party can recompute any published result from the exported round trail.
package meektally
