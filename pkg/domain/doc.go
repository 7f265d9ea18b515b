/*
Package domain contains the data model shared by every Lattice component:
nodes, edges, workflow snapshots, canvas geometry, execution statuses,
the error taxonomy and lifecycle events.

Everything here is plain data. Relationships (a node's parent group, an
edge's endpoints) are non-owning id references resolved against the graph
model, never embedded pointers, which keeps the containment hierarchy free
of reference cycles.
*/
package domain
