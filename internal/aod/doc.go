// Package aod defines the reconstructed and generated input tables and
// reads them as a stream of per-frame JSON documents, optionally gzip or
// zstd compressed.
//
// All indices in a frame (collision to BC, track association, V0 daughters,
// cascade links, MC labels, MC mothers and daughters) are positions within
// the same frame. Optional links use NoIndex.
package aod
