package aod

import (
	"fmt"
	"math/bits"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/omegac/internal/track"
)

// NoIndex marks an absent optional link.
const NoIndex = -1

// BC is a bunch crossing with its run and timestamp (ms since the epoch).
type BC struct {
	RunNumber int   `json:"run_number"`
	Timestamp int64 `json:"timestamp"`
}

// Collision is a reconstructed primary vertex.
type Collision struct {
	BC          int        `json:"bc"`
	Pos         [3]float64 `json:"pos"` // cm
	Cov         [6]float64 `json:"cov"` // xx, xy, yy, xz, yz, zz
	Sel8        bool       `json:"sel8"`
	McCollision *int       `json:"mc_collision,omitempty"`
}

// Vertex returns the collision as a track.Vertex.
func (c Collision) Vertex() track.Vertex {
	return track.NewVertex(r3.Vec{X: c.Pos[0], Y: c.Pos[1], Z: c.Pos[2]}, c.Cov[:])
}

// McCollisionIndex returns the linked MC collision or NoIndex.
func (c Collision) McCollisionIndex() int {
	if c.McCollision == nil {
		return NoIndex
	}
	return *c.McCollision
}

// Track is a fitted barrel track at its innermost update, with detector
// and PID information.
type Track struct {
	Pos    [3]float64 `json:"pos"` // cm
	Mom    [3]float64 `json:"mom"` // GeV/c
	Sign   int        `json:"sign"`
	Cov    []float64  `json:"cov,omitempty"` // packed lower triangle, 21 values
	HasTPC bool       `json:"has_tpc"`

	ITSClusterMap      uint8   `json:"its_cluster_map"`
	ITSChi2NCl         float64 `json:"its_chi2_ncl"`
	TPCNClsFindable    int     `json:"tpc_ncls_findable"`
	TPCNClsFound       int     `json:"tpc_ncls_found"`
	TPCNClsCrossedRows int     `json:"tpc_ncls_crossed_rows"`
	TPCChi2NCl         float64 `json:"tpc_chi2_ncl"`

	TPCNSigmaPi float64 `json:"tpc_nsigma_pi"`
	TPCNSigmaKa float64 `json:"tpc_nsigma_ka"`
	TPCNSigmaPr float64 `json:"tpc_nsigma_pr"`
	TOFNSigmaPi float64 `json:"tof_nsigma_pi"`
	TOFNSigmaKa float64 `json:"tof_nsigma_ka"`
	TOFNSigmaPr float64 `json:"tof_nsigma_pr"`

	McParticle *int `json:"mc_particle,omitempty"`
}

// ITSNCls counts the ITS layers with a cluster.
func (t Track) ITSNCls() int { return bits.OnesCount8(t.ITSClusterMap) }

// Pt returns the transverse momentum.
func (t Track) Pt() float64 { return r3.Norm(r3.Vec{X: t.Mom[0], Y: t.Mom[1]}) }

// McParticleIndex returns the MC label or NoIndex.
func (t Track) McParticleIndex() int {
	if t.McParticle == nil {
		return NoIndex
	}
	return *t.McParticle
}

// ParCov converts the track to a propagatable state.
func (t Track) ParCov() (track.ParCov, error) {
	return track.NewParCov(
		r3.Vec{X: t.Pos[0], Y: t.Pos[1], Z: t.Pos[2]},
		r3.Vec{X: t.Mom[0], Y: t.Mom[1], Z: t.Mom[2]},
		t.Sign, t.Cov)
}

// TrackAssoc assigns a track to a collision. A track may be associated with
// several collisions.
type TrackAssoc struct {
	Collision int `json:"collision"`
	Track     int `json:"track"`
}

// V0 is a pair of opposite-sign daughter tracks.
type V0 struct {
	PosTrack int `json:"pos_track"`
	NegTrack int `json:"neg_track"`
}

// Cascade is a V0 plus a bachelor track.
type Cascade struct {
	V0       int `json:"v0"`
	Bachelor int `json:"bachelor"`
}

// TrackedCascade is a cascade whose charged parent left hits in the inner
// tracker and was refitted as a track.
type TrackedCascade struct {
	Collision    int     `json:"collision"`
	Track        int     `json:"track"`
	Cascade      int     `json:"cascade"`
	MatchingChi2 float64 `json:"matching_chi2"`
	TopologyChi2 float64 `json:"topology_chi2"`
	XiMass       float64 `json:"xi_mass"`
	OmegaMass    float64 `json:"omega_mass"`
}

// McCollision is a generated collision.
type McCollision struct {
	Pos [3]float64 `json:"pos"`
}

// PosVec returns the generated primary vertex.
func (c McCollision) PosVec() r3.Vec { return r3.Vec{X: c.Pos[0], Y: c.Pos[1], Z: c.Pos[2]} }

// McParticle is a generated particle with its production vertex.
type McParticle struct {
	PdgCode     int        `json:"pdg"`
	McCollision int        `json:"mc_collision"`
	Mothers     []int      `json:"mothers,omitempty"`
	Daughters   []int      `json:"daughters,omitempty"`
	Mom         [3]float64 `json:"mom"`
	Vtx         [3]float64 `json:"vtx"`
}

// MomVec returns the momentum.
func (p McParticle) MomVec() r3.Vec { return r3.Vec{X: p.Mom[0], Y: p.Mom[1], Z: p.Mom[2]} }

// VtxVec returns the production vertex.
func (p McParticle) VtxVec() r3.Vec { return r3.Vec{X: p.Vtx[0], Y: p.Vtx[1], Z: p.Vtx[2]} }

// Pt returns the transverse momentum.
func (p McParticle) Pt() float64 { return r3.Norm(r3.Vec{X: p.Mom[0], Y: p.Mom[1]}) }

// P returns the momentum magnitude.
func (p McParticle) P() float64 { return r3.Norm(p.MomVec()) }

// FirstMother returns the first mother index or NoIndex.
func (p McParticle) FirstMother() int {
	if len(p.Mothers) == 0 {
		return NoIndex
	}
	return p.Mothers[0]
}

// DataFrame is one unit of input: the tables of a time frame with indices
// local to the frame.
type DataFrame struct {
	BCs             []BC             `json:"bcs"`
	Collisions      []Collision      `json:"collisions"`
	Tracks          []Track          `json:"tracks"`
	TrackAssoc      []TrackAssoc     `json:"track_assoc"`
	V0s             []V0             `json:"v0s"`
	Cascades        []Cascade        `json:"cascades"`
	TrackedCascades []TrackedCascade `json:"tracked_cascades"`
	McCollisions    []McCollision    `json:"mc_collisions,omitempty"`
	McParticles     []McParticle     `json:"mc_particles,omitempty"`
}

// HasMC reports whether the frame carries generator information.
func (f *DataFrame) HasMC() bool { return len(f.McParticles) > 0 }

// Validate checks every cross-table index.
func (f *DataFrame) Validate() error {
	in := func(i, n int) bool { return i >= 0 && i < n }
	for i, c := range f.Collisions {
		if !in(c.BC, len(f.BCs)) {
			return fmt.Errorf("collision %d: bc %d out of range", i, c.BC)
		}
		if c.McCollision != nil && !in(*c.McCollision, len(f.McCollisions)) {
			return fmt.Errorf("collision %d: mc collision %d out of range", i, *c.McCollision)
		}
	}
	for i, t := range f.Tracks {
		if t.McParticle != nil && *t.McParticle != NoIndex && !in(*t.McParticle, len(f.McParticles)) {
			return fmt.Errorf("track %d: mc particle %d out of range", i, *t.McParticle)
		}
		if t.Cov != nil && len(t.Cov) != track.CovLen {
			return fmt.Errorf("track %d: covariance has %d values, want %d", i, len(t.Cov), track.CovLen)
		}
	}
	for i, a := range f.TrackAssoc {
		if !in(a.Collision, len(f.Collisions)) || !in(a.Track, len(f.Tracks)) {
			return fmt.Errorf("track association %d out of range", i)
		}
	}
	for i, v := range f.V0s {
		if !in(v.PosTrack, len(f.Tracks)) || !in(v.NegTrack, len(f.Tracks)) {
			return fmt.Errorf("v0 %d: daughter out of range", i)
		}
	}
	for i, c := range f.Cascades {
		if !in(c.V0, len(f.V0s)) || !in(c.Bachelor, len(f.Tracks)) {
			return fmt.Errorf("cascade %d: link out of range", i)
		}
	}
	for i, tc := range f.TrackedCascades {
		if !in(tc.Collision, len(f.Collisions)) || !in(tc.Track, len(f.Tracks)) || !in(tc.Cascade, len(f.Cascades)) {
			return fmt.Errorf("tracked cascade %d: link out of range", i)
		}
	}
	for i, p := range f.McParticles {
		if !in(p.McCollision, len(f.McCollisions)) {
			return fmt.Errorf("mc particle %d: mc collision %d out of range", i, p.McCollision)
		}
		for _, m := range p.Mothers {
			if !in(m, len(f.McParticles)) {
				return fmt.Errorf("mc particle %d: mother %d out of range", i, m)
			}
		}
		for _, d := range p.Daughters {
			if !in(d, len(f.McParticles)) {
				return fmt.Errorf("mc particle %d: daughter %d out of range", i, d)
			}
		}
	}
	return nil
}

// TracksByCollision groups associated track indices per collision,
// preserving the order of first association. A track associated more than
// once to the same collision appears once.
func (f *DataFrame) TracksByCollision() [][]int {
	out := make([][]int, len(f.Collisions))
	seen := make(map[TrackAssoc]bool, len(f.TrackAssoc))
	for _, a := range f.TrackAssoc {
		if seen[a] {
			continue
		}
		seen[a] = true
		out[a.Collision] = append(out[a.Collision], a.Track)
	}
	return out
}

// TrackedCascadesByCollision groups tracked cascade indices per collision.
func (f *DataFrame) TrackedCascadesByCollision() [][]int {
	out := make([][]int, len(f.Collisions))
	for i, tc := range f.TrackedCascades {
		out[tc.Collision] = append(out[tc.Collision], i)
	}
	return out
}
