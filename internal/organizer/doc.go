// Package organizer places extracted documents into the workspace.
//
// Confident results land under organized/<YYYY-MM>/<type>/ and results
// flagged by the review policy under review/<reason>/. File names encode
// date, type, merchant, amount and a short hash prefix so they sort and
// stay unique. Placement never overwrites: a taken name gets a numeric
// suffix and the final create is exclusive. Move mode stages a backup in the
// run's trash directory first so the run can be undone.
package organizer
