// Package sqlite stores reconstruction output in SQLite.
//
// Column names of the candidate and generated tables are the json tags of
// reco.Candidate and reco.Generated; the migrations and the record types
// must be kept in step.
package sqlite
