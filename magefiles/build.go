//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var commands = []string{"render", "inspectbmd"}

// Builds every command into bin/.
func (Build) All() error {
	for _, c := range commands {
		if err := buildCommand(c); err != nil {
			return err
		}
	}
	return nil
}

// Builds the snapshot renderer.
func (Build) Render() error {
	return buildCommand("render")
}

// Builds the BMD inspector.
func (Build) Inspect() error {
	return buildCommand("inspectbmd")
}

func buildCommand(name string) error {
	out := filepath.Join("bin", name)
	_, err := executeCmd("go", withArgs("build", "-o", out, "./cmd/"+name), withEnv("CGO_ENABLED=0"))
	return err
}
