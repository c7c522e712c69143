package cli

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/georgepadayatti/pdfltv/sign/extension"
)

// ScanCommand implements the 'scan' command.
func ScanCommand(args []string) {
	scanFlags := flag.NewFlagSet("scan", flag.ContinueOnError)
	scanFlags.SetOutput(stderr)

	var opts CommonOptions
	opts.register(scanFlags)

	scanFlags.Usage = func() {
		fmt.Fprintf(stdout, "Usage: %s scan [options] <input>\n\n", os.Args[0])
		fmt.Fprintln(stdout, "Order and validate the protective layers of a signed file.")
		fmt.Fprintln(stdout, "PDF files are read as PAdES, anything else as a CMS signature (CAdES).")
		fmt.Fprintln(stdout, "")
		fmt.Fprintln(stdout, "Options:")
		scanFlags.SetOutput(stdout)
		scanFlags.PrintDefaults()
		scanFlags.SetOutput(stderr)
	}

	if err := scanFlags.Parse(args[2:]); err != nil {
		osExit(2)
		return
	}
	if scanFlags.NArg() < 1 {
		scanFlags.Usage()
		osExit(2)
		return
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

	path := scanFlags.Arg(0)
	data, err := readInput(path)
	if err != nil {
		fail(err)
		return
	}

	var doc *extension.Document
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("%PDF-")) {
		doc, err = extension.LoadPDF(data)
	} else {
		doc, err = extension.LoadCMS(data)
	}
	if err != nil {
		fail(err)
		return
	}
	logger.Debug("document loaded",
		zap.String("path", path),
		zap.Stringer("format", doc.Format()),
		zap.Int("layers", len(doc.Layers())))

	emit(c, doc, opts.Format)
}
