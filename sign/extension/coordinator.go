package extension

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/georgepadayatti/pdfltv/config"
	"github.com/georgepadayatti/pdfltv/pdf/byterange"
	"github.com/georgepadayatti/pdfltv/sign/coverage"
	"github.com/georgepadayatti/pdfltv/sign/digest"
	"github.com/georgepadayatti/pdfltv/sign/hashindex"
	"github.com/georgepadayatti/pdfltv/sign/layers"
)

// ExtensionKind is the next step needed to extend a document.
type ExtensionKind int

const (
	// TimestampOnly: the latest layer already protects the whole current
	// state, so a new archive or document timestamp suffices.
	TimestampOnly ExtensionKind = iota + 1
	// NewRevisionRequired: validation data must first be bound in a new
	// incremental revision.
	NewRevisionRequired
)

func (k ExtensionKind) String() string {
	switch k {
	case TimestampOnly:
		return "timestamp-only"
	case NewRevisionRequired:
		return "new-revision-required"
	default:
		return fmt.Sprintf("ExtensionKind(%d)", int(k))
	}
}

// ValidationDataInjector is consumed by signature extension services to
// decide between adding a timestamp and adding a revision.
type ValidationDataInjector interface {
	// CoverageSet returns the layers protected by the latest layer.
	CoverageSet(doc *Document) ([]layers.ID, error)
	// NextExtensionKind returns the extension the document needs next.
	NextExtensionKind(doc *Document) (ExtensionKind, error)
}

// NotCoveringError reports an appended layer that leaves the previous
// latest layer unprotected.
type NotCoveringError struct {
	Layer  layers.ID
	Latest layers.ID
}

func (e *NotCoveringError) Error() string {
	return fmt.Sprintf("%v: layer %d does not cover layer %d", ErrNotCoveringLayer, e.Layer, e.Latest)
}

func (e *NotCoveringError) Unwrap() error { return ErrNotCoveringLayer }

// Coordinator orders layers, resolves their coverage and decides how a
// document is extended. It holds no per-document state and is safe for
// concurrent use.
type Coordinator struct {
	logger   *zap.Logger
	provider digest.Provider
	config   *config.ValidationConfig
	clock    clockwork.Clock
}

var _ ValidationDataInjector = (*Coordinator)(nil)

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithDigestProvider(p digest.Provider) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.provider = p
		}
	}
}

func WithConfig(cfg *config.ValidationConfig) Option {
	return func(c *Coordinator) {
		if cfg != nil {
			c.config = cfg
		}
	}
}

// WithClock sets the clock used to stamp reports.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New creates a Coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:   zap.NewNop(),
		provider: digest.Default,
		config:   config.Default().Validation,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) analyze(ls []*layers.Layer) (*coverage.Analyzer, error) {
	a := coverage.NewAnalyzer(ls,
		coverage.WithLogger(c.logger),
		coverage.WithDigestProvider(c.provider))
	return a, a.Run()
}

// DecideExtensionKind returns TimestampOnly when the latest layer is a
// timestamp that protects every earlier layer and, for PAdES, whose byte
// range spans the whole current file. Otherwise validation data has to be
// added in a new revision first.
func (c *Coordinator) DecideExtensionKind(doc *Document) (ExtensionKind, error) {
	if len(doc.layers) == 0 {
		return 0, ErrEmptyDocument
	}
	a, err := c.analyze(doc.layers)
	if err != nil {
		return 0, err
	}

	latest, _ := a.Latest()
	kind := c.decide(doc, a, latest)
	c.logger.Debug("extension kind decided",
		zap.Stringer("document", doc.id),
		zap.Int("latest", int(latest.ID())),
		zap.Stringer("kind", kind))
	return kind, nil
}

func (c *Coordinator) decide(doc *Document, a *coverage.Analyzer, latest *layers.Layer) ExtensionKind {
	if !latest.Kind().IsTimestamp() {
		return NewRevisionRequired
	}
	if len(latest.CoveredLayers()) != len(a.Layers())-1 {
		return NewRevisionRequired
	}
	if doc.format == FormatPAdES {
		r, ok := latest.ByteRange()
		if !ok || !byterange.CoversWholeFile(r, doc.length) {
			return NewRevisionRequired
		}
	}
	return TimestampOnly
}

// NextExtensionKind implements ValidationDataInjector.
func (c *Coordinator) NextExtensionKind(doc *Document) (ExtensionKind, error) {
	return c.DecideExtensionKind(doc)
}

// CoverageSet implements ValidationDataInjector.
func (c *Coordinator) CoverageSet(doc *Document) ([]layers.ID, error) {
	if len(doc.layers) == 0 {
		return nil, ErrEmptyDocument
	}
	a, err := c.analyze(doc.layers)
	if err != nil {
		return nil, err
	}
	latest, _ := a.Latest()
	return a.CoverageSet(latest.ID())
}

// AppendLayer returns a new document with l appended. The layer's byte
// range must be well formed and nest with every existing range, and the
// layer must cover the previous latest layer. For PAdES a byte range
// extending past the current length grows the document. doc is never
// modified.
func (c *Coordinator) AppendLayer(doc *Document, l *layers.Layer, opts ...DocumentOption) (*Document, error) {
	if _, dup := doc.Layer(l.ID()); dup {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateLayer, l.ID())
	}
	r, hasRange := l.ByteRange()
	if hasRange {
		if err := byterange.Validate(r); err != nil {
			return nil, fmt.Errorf("layer %d: %w", l.ID(), err)
		}
	}

	var prior *layers.Layer
	if len(doc.layers) > 0 {
		a, err := c.analyze(doc.layers)
		if err != nil {
			return nil, err
		}
		prior, _ = a.Latest()
	}

	next := doc.with(l, opts...)
	if hasRange && doc.format == FormatPAdES && r.End() > next.length {
		next.length = r.End()
	}

	a, err := c.analyze(next.layers)
	if err != nil {
		var strange *byterange.StrangeByteRangesError
		if errors.As(err, &strange) {
			c.logger.Info("appended layer collides", zap.Int("layer", int(l.ID())), zap.Error(err))
		}
		return nil, err
	}

	if prior != nil {
		covered, err := a.CoverageSet(l.ID())
		if err != nil {
			return nil, err
		}
		if !slices.Contains(covered, prior.ID()) {
			return nil, &NotCoveringError{Layer: l.ID(), Latest: prior.ID()}
		}
	}

	c.logger.Debug("layer appended",
		zap.Stringer("document", doc.id),
		zap.Int("layer", int(l.ID())),
		zap.Stringer("kind", l.Kind()),
		zap.Int("layers", len(next.layers)))
	return next, nil
}

// NextHashIndex builds the hash index for a new archive timestamp over the
// given material, using the configured version and digest algorithm.
func (c *Coordinator) NextHashIndex(s hashindex.State) (*hashindex.Table, error) {
	v, err := c.config.Version()
	if err != nil {
		return nil, err
	}
	alg, err := c.config.DigestOID()
	if err != nil {
		return nil, err
	}
	return hashindex.Build(s, v, alg, c.provider)
}
