//go:build mage

package main

import (
	"fmt"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified
var Default = Help

// Help displays available mage targets
func Help() error {
	fmt.Println("warp - WARP mesh routing simulator")
	fmt.Printf("   Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println()
	fmt.Println("Available targets:")
	fmt.Println()
	fmt.Println("  Build & Install:")
	fmt.Println("    mage build        - Build the warp binary")
	fmt.Println("    mage install      - Install warp to $GOPATH/bin")
	fmt.Println("    mage clean        - Clean build artifacts")
	fmt.Println()
	fmt.Println("  Development:")
	fmt.Println("    mage test         - Run all tests")
	fmt.Println("    mage testVerbose  - Run tests with verbose output")
	fmt.Println("    mage fmt          - Format code with go fmt")
	fmt.Println("    mage vet          - Run go vet")
	fmt.Println()
	fmt.Println("  Simulation:")
	fmt.Println("    mage sim          - Build and run the sample topology")
	fmt.Println()
	return nil
}

// Build compiles the warp binary.
func Build() error {
	fmt.Println("Building warp...")
	return sh.RunV("go", "build", "-o", "warp", ".")
}

// Install installs warp into $GOPATH/bin.
func Install() error {
	fmt.Println("Installing warp...")
	return sh.RunV("go", "install", ".")
}

// Test runs the full test suite.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// TestVerbose runs the full test suite with -v.
func TestVerbose() error {
	return sh.RunV("go", "test", "-v", "./...")
}

// Fmt formats all packages.
func Fmt() error {
	return sh.RunV("go", "fmt", "./...")
}

// Vet vets all packages.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Sim builds the binary and runs it against the sample topology.
func Sim() error {
	mg.Deps(Build)
	return sh.RunV("./warp", "sim", "-topology", "topology.sample.json")
}

// Clean removes build artifacts.
func Clean() error {
	fmt.Println("Cleaning...")
	return sh.Rm("warp")
}
