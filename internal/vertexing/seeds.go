package vertexing

import (
	"math"

	"github.com/banshee-data/omegac/internal/track"
)

// seed is a starting point in the transverse plane.
type seed struct{ x, y float64 }

// crossings returns up to two starting points from the intersections of the
// transverse projections of a and b. Projections that do not cross yield the
// midpoint of their closest points.
func crossings(a, b track.Helix) []seed {
	switch {
	case a.Straight() && b.Straight():
		return lineLine(a, b)
	case a.Straight():
		return lineCircle(a, b)
	case b.Straight():
		return lineCircle(b, a)
	default:
		return circleCircle(a, b)
	}
}

func circleCircle(a, b track.Helix) []seed {
	x1, y1 := a.Center()
	x2, y2 := b.Center()
	r1, r2 := a.Radius(), b.Radius()
	dx, dy := x2-x1, y2-y1
	d := math.Hypot(dx, dy)
	if d < 1e-9 {
		// concentric: no preferred crossing, start from the reference points
		return []seed{{0.5 * (a.X0 + b.X0), 0.5 * (a.Y0 + b.Y0)}}
	}
	ux, uy := dx/d, dy/d

	if d > r1+r2 || d < math.Abs(r1-r2) {
		var p1x, p1y, p2x, p2y float64
		switch {
		case d > r1+r2:
			p1x, p1y = x1+r1*ux, y1+r1*uy
			p2x, p2y = x2-r2*ux, y2-r2*uy
		case r1 > r2:
			p1x, p1y = x1+r1*ux, y1+r1*uy
			p2x, p2y = x2+r2*ux, y2+r2*uy
		default:
			p1x, p1y = x1-r1*ux, y1-r1*uy
			p2x, p2y = x2-r2*ux, y2-r2*uy
		}
		return []seed{{0.5 * (p1x + p2x), 0.5 * (p1y + p2y)}}
	}

	along := (r1*r1 - r2*r2 + d*d) / (2 * d)
	h := math.Sqrt(math.Max(r1*r1-along*along, 0))
	mx, my := x1+along*ux, y1+along*uy
	if h < 1e-9 {
		return []seed{{mx, my}}
	}
	return []seed{
		{mx - h*uy, my + h*ux},
		{mx + h*uy, my - h*ux},
	}
}

func lineCircle(l, c track.Helix) []seed {
	cx, cy := c.Center()
	r := c.Radius()
	ux, uy := math.Cos(l.Phi0), math.Sin(l.Phi0)
	wx, wy := l.X0-cx, l.Y0-cy
	wu := wx*ux + wy*uy
	disc := wu*wu - (wx*wx + wy*wy - r*r)
	if disc < 0 {
		t := -wu
		qx, qy := l.X0+t*ux, l.Y0+t*uy
		dq := math.Hypot(qx-cx, qy-cy)
		px, py := cx+r*(qx-cx)/dq, cy+r*(qy-cy)/dq
		return []seed{{0.5 * (qx + px), 0.5 * (qy + py)}}
	}
	sq := math.Sqrt(disc)
	t1, t2 := -wu-sq, -wu+sq
	if sq < 1e-9 {
		return []seed{{l.X0 + t1*ux, l.Y0 + t1*uy}}
	}
	return []seed{
		{l.X0 + t1*ux, l.Y0 + t1*uy},
		{l.X0 + t2*ux, l.Y0 + t2*uy},
	}
}

func lineLine(a, b track.Helix) []seed {
	u1x, u1y := math.Cos(a.Phi0), math.Sin(a.Phi0)
	u2x, u2y := math.Cos(b.Phi0), math.Sin(b.Phi0)
	cross := u1x*u2y - u1y*u2x
	dx, dy := b.X0-a.X0, b.Y0-a.Y0
	if math.Abs(cross) < 1e-12 {
		// parallel: midpoint between a's reference and its projection on b
		t := -(dx*u2x + dy*u2y)
		px, py := b.X0+t*u2x, b.Y0+t*u2y
		return []seed{{0.5 * (a.X0 + px), 0.5 * (a.Y0 + py)}}
	}
	t1 := (dx*u2y - dy*u2x) / cross
	return []seed{{a.X0 + t1*u1x, a.Y0 + t1*u1y}}
}
