// Package conditions provides per-run environment data: the solenoid field
// and the material budget, resolved from timestamped condition objects kept
// in a local SQLite snapshot.
package conditions
