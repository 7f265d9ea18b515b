package lattice

// Version is the library version, overridable at build time with
// -ldflags "-X github.com/latticehq/lattice.Version=...".
var Version = "0.1.0"
