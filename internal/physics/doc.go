// Package physics holds particle constants and the decay kinematics shared
// by reconstruction and truth matching.
package physics
