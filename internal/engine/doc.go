// Package engine holds the pure calculators of the manifest: capacity and
// qualification checks, position renumbering, instructor availability, the
// cascading departure countdown, rotation balance and the load lifecycle.
// Nothing here touches the store; every function is recomputed from a snapshot.
package engine
