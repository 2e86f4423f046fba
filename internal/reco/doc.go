// Package reco assembles Ωc⁰ and Ξc⁰ candidates from strangeness-tracked
// cascades.
//
// For every tracked cascade of a collision the engine refits the V0 and the
// cascade, applies the cascade selections and then pairs the cascade with
// each selected track of the collision twice: once using the cascade
// reconstructed from its daughters ("untracked") and once using the tracked
// cascade propagated to the primary vertex. Only the tracked fit is required
// for a candidate to be emitted.
package reco
