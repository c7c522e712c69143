package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/georgepadayatti/pdfltv/config"
	"github.com/georgepadayatti/pdfltv/sign/extension"
	"github.com/georgepadayatti/pdfltv/sign/validation/report"
)

// CommonOptions are shared by the commands that produce a report.
type CommonOptions struct {
	ConfigFile string
	Format     string
	LogLevel   string
}

func (o *CommonOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.ConfigFile, "config", "", "YAML configuration file")
	fs.StringVar(&o.Format, "format", "text", "Report format: text, markdown, json or xml")
	fs.StringVar(&o.LogLevel, "log-level", "", "Override the configured log level")
}

// loadConfig reads the configuration file, or the defaults when none is
// given, and applies command-line overrides.
func (o *CommonOptions) loadConfig() (*config.AppConfig, error) {
	cfg := config.Default()
	if o.ConfigFile != "" {
		var err error
		if cfg, err = config.LoadConfig(o.ConfigFile); err != nil {
			return nil, err
		}
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
		if err := cfg.Logging.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// NewLogger builds a zap logger from the logging configuration.
func NewLogger(c *config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(strings.ToLower(c.Level))
	if err != nil {
		return nil, config.NewConfigError("level", err.Error())
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Sampling = nil
	zc.Encoding = "console"
	if strings.EqualFold(c.Format, "json") {
		zc.Encoding = "json"
	}
	zc.OutputPaths = []string{c.Output}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// newCoordinator wires a coordinator from the loaded configuration.
func newCoordinator(cfg *config.AppConfig) (*extension.Coordinator, *zap.Logger, error) {
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	c := extension.New(
		extension.WithLogger(logger),
		extension.WithConfig(cfg.Validation),
	)
	return c, logger, nil
}

// emit validates the document, writes the report and exits non-zero when
// the document fails.
func emit(c *extension.Coordinator, doc *extension.Document, format string) {
	rep, err := c.Validate(doc)
	if rep == nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		osExit(1)
		return
	}

	if werr := report.NewFormatter().WriteTo(stdout, rep, format); werr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", werr)
		osExit(1)
		return
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		osExit(1)
		return
	}

	if isText(format) {
		if kind, err := c.NextExtensionKind(doc); err == nil {
			fmt.Fprintf(stdout, "\nNext extension: %s\n", kind)
		}
	}
	if rep.Conclusion.IsFailed() {
		osExit(1)
	}
}

func isText(format string) bool {
	switch strings.ToLower(format) {
	case "json", "xml", "markdown", "md":
		return false
	}
	return true
}

func fail(err error) {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	osExit(1)
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
