//go:build mage

// Package main provides build targets for the milestones project using Mage.
//
// Usage:
//
//	mage build          Compile milestones binary to bin/
//	mage test:all       Run all tests
//	mage test:unit      Run library and store tests (skip the CLI package)
//	mage test:race      Run all tests with the race detector
//	mage test:cover     Write coverage.out and print per-function coverage
//	mage lint           Run golangci-lint
//	mage vet            Run go vet
//	mage fmt            Fail on files that need gofmt
//	mage tidy           Fail when go.mod is out of date
//	mage check          Fmt, vet, lint and all tests
//	mage clean          Remove build artifacts
//	mage install        Install milestones to GOPATH/bin
//	mage stats          Print Go LOC and documentation word counts
package main

import "github.com/magefile/mage/mg"

// Default target when mage runs without arguments.
var Default = Build

// Check runs fmt, vet, lint and the full test suite.
func Check() {
	mg.SerialDeps(Fmt, Vet, Lint, Test.All)
}
