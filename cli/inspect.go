package cli

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// InspectCommand implements the 'inspect' command.
func InspectCommand(args []string) {
	inspectFlags := flag.NewFlagSet("inspect", flag.ContinueOnError)
	inspectFlags.SetOutput(stderr)

	var opts CommonOptions
	opts.register(inspectFlags)
	jsonOut := inspectFlags.Bool("json", false, "Shorthand for -format json")

	inspectFlags.Usage = func() {
		fmt.Fprintf(stdout, "Usage: %s inspect [options] <manifest.yaml>\n\n", os.Args[0])
		fmt.Fprintln(stdout, "Validate the protective layers described by a YAML manifest.")
		fmt.Fprintln(stdout, "")
		fmt.Fprintln(stdout, "Options:")
		inspectFlags.SetOutput(stdout)
		inspectFlags.PrintDefaults()
		inspectFlags.SetOutput(stderr)
	}

	if err := inspectFlags.Parse(args[2:]); err != nil {
		osExit(2)
		return
	}
	if inspectFlags.NArg() < 1 {
		inspectFlags.Usage()
		osExit(2)
		return
	}
	if *jsonOut {
		opts.Format = "json"
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		fail(err)
		return
	}
	c, logger, err := newCoordinator(cfg)
	if err != nil {
		fail(err)
		return
	}
	defer func() { _ = logger.Sync() }()

	doc, err := LoadManifest(inspectFlags.Arg(0))
	if err != nil {
		fail(err)
		return
	}
	logger.Debug("manifest loaded", zap.Stringer("document", doc.ID()), zap.Int("layers", len(doc.Layers())))

	emit(c, doc, opts.Format)
}
