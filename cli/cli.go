// Package cli provides the command-line interface for inspecting the
// protective layers of signed documents.
package cli

import (
	"fmt"
	"io"
	"os"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// osExit is a variable for os.Exit to allow testing
var osExit = os.Exit

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Run executes the CLI with the given arguments.
// This is the main entry point for the CLI.
func Run(args []string) {
	if len(args) < 2 {
		Usage()
		return
	}

	command := args[1]

	switch command {
	case "scan":
		ScanCommand(args)
	case "inspect":
		InspectCommand(args)
	case "version":
		VersionCommand()
	case "help", "-h", "--help":
		Usage()
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		Usage()
		osExit(2)
	}
}

// Usage prints the CLI usage information.
func Usage() {
	fmt.Fprintf(stdout, "pdfltv - long-term evidence layer inspection tool\n\n")
	fmt.Fprintf(stdout, "Usage: %s <command> [options] <args>\n\n", os.Args[0])
	fmt.Fprintln(stdout, "Commands:")
	fmt.Fprintln(stdout, "  scan     Order and validate the protective layers of a PDF or CMS file")
	fmt.Fprintln(stdout, "  inspect  Validate the layers described by a YAML manifest")
	fmt.Fprintln(stdout, "  version  Show version information")
	fmt.Fprintln(stdout, "  help     Show this help message")
	fmt.Fprintln(stdout, "")
	fmt.Fprintf(stdout, "Use '%s <command> -h' for command-specific help\n", os.Args[0])
	fmt.Fprintln(stdout, "")
	fmt.Fprintln(stdout, "Examples:")
	fmt.Fprintf(stdout, "  %s scan document.pdf\n", os.Args[0])
	fmt.Fprintf(stdout, "  %s scan -format json signature.p7s\n", os.Args[0])
	fmt.Fprintf(stdout, "  %s inspect -config pdfltv.yaml layers.yaml\n", os.Args[0])
}

// VersionCommand prints version information.
func VersionCommand() {
	fmt.Fprintf(stdout, "pdfltv version %s\n", Version)
	fmt.Fprintf(stdout, "Build time: %s\n", BuildTime)
}
