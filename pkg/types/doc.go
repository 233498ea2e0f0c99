// Package types defines the badge catalog, the derived progress types, the
// session tracker state, the SessionStore interface and the standard errors
// shared by the Milestones packages.
//
// Everything here is data. Evaluation and reconciliation live in package
// progress; storage backends live under internal/.
package types
