// Package main provides the milestones CLI.
package main

import "github.com/mesh-intelligence/milestones/internal/cli"

func main() {
	cli.Execute()
}
