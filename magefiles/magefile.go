//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified
var Default = CI

// CI runs the checks the pipeline runs: vet, then the full test suite.
func CI() error {
	mg.SerialDeps(Vet, Test)
	fmt.Println("CI checks passed")
	return nil
}

// Vet vets the module from the repository root.
func Vet() error {
	return sh.RunV("go", "-C", "..", "vet", "./...")
}

// Test runs the module tests from the repository root.
func Test() error {
	return sh.RunV("go", "-C", "..", "test", "./...")
}
