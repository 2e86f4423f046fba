// Package vertexing fits the point of closest approach (PCA) of two charged
// or neutral trajectories in a uniform solenoidal field.
//
// The fit seeds from the crossings of the transverse projections, then runs
// Newton iterations on the two arc lengths, minimising either the absolute
// distance or the covariance-weighted χ². Outcomes are values, never panics:
//
//	switch f.Fit(a, b) {
//	case vertexing.Converged:
//		pca := f.PCA()
//	case vertexing.GeometryRejected, vertexing.NotConverged, vertexing.NumericalFault:
//		// drop the combination
//	}
package vertexing
