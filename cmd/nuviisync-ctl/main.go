// nuviisync-ctl is the operator CLI: force-cleanup removes every
// provider-prefixed sync-root registration left behind in the OS registry
// and restarts the shell; unregister tears down one sync root explicitly.
package main

import (
	"fmt"
	"os"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "unregister":
		if len(args) < 2 {
			fmt.Println("Usage: nuviisync-ctl unregister <client-path>")
			os.Exit(1)
		}
		if err := unregister(args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Unregistered.")

	case "force-cleanup":
		providerName := "NuviiSync"
		if len(args) > 1 {
			providerName = args[1]
		}
		if err := forceCleanup(providerName); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Cleanup complete.")

	case "--help", "-h", "help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("nuviisync-ctl - NuviiSync sync root operator tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  nuviisync-ctl unregister <client-path>     Unregister one sync root (removes all placeholders)")
	fmt.Println("  nuviisync-ctl force-cleanup [provider]      Remove all provider-prefixed sync-root registry entries and restart Explorer")
}
