// Package flatfinder watches classified-listing sites and reports listings
// it has not seen before. Each run scrapes one source, diffs the result
// against the persisted set of known listing ids, notifies about the new
// ones and records them as known.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, goquery/, telegram/).
package flatfinder
