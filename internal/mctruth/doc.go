// Package mctruth associates reconstructed candidates with generated decay
// chains.
//
// Generated charm baryons are found once per frame by ScanGenerated and
// their output rows are tracked in a GenContext that lives for that frame
// only. MatchChain matches a candidate layer by layer (Λ, cascade, charm
// baryon); a candidate is matched only when all three layers agree.
package mctruth
