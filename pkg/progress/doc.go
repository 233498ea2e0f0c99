// Package progress evaluates badge catalogs against trip counts and decides
// when newly crossed tiers deserve a celebration.
//
// Evaluate and Reconcile are pure functions. Tracker composes them with a
// types.SessionStore and serializes the read-modify-write of each session's
// watermark, so one Tracker may be shared by any number of goroutines.
package progress
