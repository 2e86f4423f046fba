package track

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Helix is the trajectory of a Params state in a uniform longitudinal
// field, parametrised by the signed transverse arc length s from the
// reference point. Neutral tracks and zero field give a straight line.
type Helix struct {
	X0, Y0, Z0 float64
	Pt         float64
	Phi0       float64
	TanL       float64
	Omega      float64 // signed curvature, 1/cm
}

// NewHelix returns the helix of p in field bz (kG).
func NewHelix(p Params, bz float64) Helix {
	pt := p.Pt()
	h := Helix{
		X0:   p.Pos.X,
		Y0:   p.Pos.Y,
		Z0:   p.Pos.Z,
		Pt:   pt,
		Phi0: math.Atan2(p.Mom.Y, p.Mom.X),
	}
	if pt > 0 {
		h.TanL = p.Mom.Z / pt
		h.Omega = -float64(p.Charge) * B2C * bz / pt
	}
	return h
}

// Straight reports whether the helix degenerates to a line.
func (h Helix) Straight() bool { return math.Abs(h.Omega) < 1e-12 }

// Point returns the position at arc length s.
func (h Helix) Point(s float64) r3.Vec {
	half := 0.5 * h.Omega * s
	phiM := h.Phi0 + half
	sc := s * sinc(half)
	return r3.Vec{
		X: h.X0 + sc*math.Cos(phiM),
		Y: h.Y0 + sc*math.Sin(phiM),
		Z: h.Z0 + s*h.TanL,
	}
}

// Momentum returns the momentum at arc length s.
func (h Helix) Momentum(s float64) r3.Vec {
	phi := h.Phi0 + h.Omega*s
	return r3.Vec{X: h.Pt * math.Cos(phi), Y: h.Pt * math.Sin(phi), Z: h.Pt * h.TanL}
}

// Tangent returns dr/ds.
func (h Helix) Tangent(s float64) r3.Vec {
	phi := h.Phi0 + h.Omega*s
	return r3.Vec{X: math.Cos(phi), Y: math.Sin(phi), Z: h.TanL}
}

// Curvature returns d²r/ds².
func (h Helix) Curvature(s float64) r3.Vec {
	phi := h.Phi0 + h.Omega*s
	return r3.Vec{X: -h.Omega * math.Sin(phi), Y: h.Omega * math.Cos(phi)}
}

// Center returns the centre of the transverse circle. It is only meaningful
// when the helix is not straight.
func (h Helix) Center() (x, y float64) {
	r := 1 / h.Omega
	return h.X0 - r*math.Sin(h.Phi0), h.Y0 + r*math.Cos(h.Phi0)
}

// Radius returns the transverse radius of curvature.
func (h Helix) Radius() float64 {
	if h.Straight() {
		return math.Inf(1)
	}
	return math.Abs(1 / h.Omega)
}

// ArcTo returns the arc length of the point of the transverse projection
// closest to (x, y), within half a turn of the reference point.
func (h Helix) ArcTo(x, y float64) float64 {
	if h.Straight() {
		return (x-h.X0)*math.Cos(h.Phi0) + (y-h.Y0)*math.Sin(h.Phi0)
	}
	cx, cy := h.Center()
	phi := math.Atan2(h.Omega*(x-cx), -h.Omega*(y-cy))
	return wrapPi(phi-h.Phi0) / h.Omega
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-4 {
		return 1 - x*x/6
	}
	return math.Sin(x) / x
}

func wrapPi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	switch {
	case a > math.Pi:
		a -= 2 * math.Pi
	case a <= -math.Pi:
		a += 2 * math.Pi
	}
	return a
}
