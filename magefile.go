//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

// Build compiles both executables into ./bin
func Build() error {
	mg.Deps(BuildConverter, BuildDump)
	fmt.Println("Compilation finished")
	return nil
}

func goCommand(args ...string) *exec.Cmd {
	ldflags := os.Getenv("CGO_LDFLAGS")
	cflags := os.Getenv("CGO_CFLAGS")
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
		fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

func BuildConverter() error {
	fmt.Println("Building converter executable...")
	return goCommand("build", "-o", "./bin/converter", "./converter").Run()
}

func BuildDump() error {
	fmt.Println("Building dump executable...")
	return goCommand("build", "-o", "./bin/dump", "./dump").Run()
}

// Test runs the unit tests of the library
func Test() error {
	fmt.Println("Running tests...")
	return goCommand("test", "./pkg/...").Run()
}
