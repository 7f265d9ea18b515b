/*
Package ports defines the boundary interfaces of the engine: the Runner
capability through which node work is invoked, the registry that resolves
runners by node kind, and the SnapshotStore used to persist workflow
snapshots.

The engine only ever consumes these interfaces; hosts supply the
implementations. A reusable contract suite (RunSnapshotStoreContract) lets
adapter packages verify compliance with a single call.
*/
package ports
