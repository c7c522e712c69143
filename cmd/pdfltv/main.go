// Command pdfltv orders and validates the long-term protective layers of
// PAdES and CAdES signatures.
//
// Usage:
//
//	pdfltv <command> [options] <args>
//
// Commands:
//
//	scan     Order and validate the protective layers of a PDF or CMS file
//	inspect  Validate the layers described by a YAML manifest
//	version  Show version information
//	help     Show help message
//
// Examples:
//
//	# Validate a PAdES document
//	pdfltv scan document.pdf
//
//	# Validate a detached CAdES signature with JSON output
//	pdfltv scan -format json signature.p7s
//
//	# Validate a layer manifest with a configuration file
//	pdfltv inspect -config pdfltv.yaml layers.yaml
package main

import (
	"os"

	"github.com/georgepadayatti/pdfltv/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/pdfltv
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime

	cli.Run(os.Args)
}
