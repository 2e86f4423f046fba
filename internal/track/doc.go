// Package track models charged-particle trajectories: a Cartesian state with
// covariance, its helix in a solenoidal field, and propagation to the point
// of closest approach to a vertex with optional material effects.
//
// Units are cm, GeV/c and kG throughout. Values are immutable; every
// propagation returns a new state.
package track
