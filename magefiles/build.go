//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binGit     = "git"
	binaryName = "milestones"
	binaryDir  = "bin"
	cmdDir     = "./cmd/milestones"
	versionVar = "github.com/mesh-intelligence/milestones/internal/cli.Version"
)

// Build compiles the milestones binary to bin/, stamping the version from
// `git describe` when the tree is a git checkout.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-trimpath"}
	if v := gitVersion(); v != "" {
		args = append(args, "-ldflags", fmt.Sprintf("-X %s=%s", versionVar, v))
	}
	args = append(args, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
	return sh.RunV(binGo, args...)
}

// gitVersion returns the nearest tag without its leading "v", or "" when
// git has nothing to say.
func gitVersion() string {
	out, err := sh.Output(binGit, "describe", "--tags", "--always", "--dirty")
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.TrimSpace(out), "v")
}

// Clean removes the binary, the coverage profile and the go build cache
// entries for this module.
func Clean() error {
	for _, p := range []string{binaryDir, coverProfile} {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOBIN, falling back to
// GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	dir, err := sh.Output(binGo, "env", "GOBIN")
	if err != nil {
		return err
	}
	if dir == "" {
		gopath, err := sh.Output(binGo, "env", "GOPATH")
		if err != nil {
			return err
		}
		dir = filepath.Join(gopath, "bin")
	}
	return sh.Copy(filepath.Join(dir, binaryName), filepath.Join(binaryDir, binaryName))
}
