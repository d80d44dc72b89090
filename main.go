package main

import (
	"fmt"
	"os"

	"github.com/okdaichi/warp/internal/cli"
	"github.com/okdaichi/warp/internal/version"
)

var (
	// overridable command handlers for easier unit-testing
	runSim = cli.RunSim
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the command logic and returns an exit code (0 = success).
// Keeping this function small makes unit-testing straightforward.
func run(args []string) int {
	if len(args) < 1 {
		printUsage()
		return 1
	}

	cmd := args[0]
	cmdArgs := args[1:]

	var err error
	switch cmd {
	case "sim":
		err = runSim(cmdArgs)
	case "version":
		fmt.Println(version.Current())
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: warp <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  sim      Start the WARP mesh simulator")
	fmt.Fprintln(os.Stderr, "  version  Print version information")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Flags:")
	fmt.Fprintln(os.Stderr, "  -config string     path to config file (default: config.sim.yaml)")
	fmt.Fprintln(os.Stderr, "  -topology string   topology JSON file (overrides config)")
}
