// Package coverage resolves which protective layers of a document are
// covered by which, and reports the gaps.
package coverage

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/georgepadayatti/pdfltv/pdf/byterange"
	"github.com/georgepadayatti/pdfltv/sign/digest"
	"github.com/georgepadayatti/pdfltv/sign/layers"
)

// ErrInvalidTransition is returned when an analyzer step runs out of order.
var ErrInvalidTransition = errors.New("invalid coverage state transition")

// State is the analyzer's progress.
type State int

const (
	Unprocessed State = iota
	Sorted
	CoverageResolved
)

func (s State) String() string {
	switch s {
	case Unprocessed:
		return "unprocessed"
	case Sorted:
		return "sorted"
	case CoverageResolved:
		return "coverage-resolved"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Analyzer runs Unprocessed -> Sorted -> CoverageResolved over the layers
// of one document. It is not safe for concurrent use.
type Analyzer struct {
	state    State
	input    []*layers.Layer
	sorted   []*layers.Layer
	provider digest.Provider
	logger   *zap.Logger
	findings []Finding
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithDigestProvider sets the provider used to check hash-index evidence.
func WithDigestProvider(p digest.Provider) Option {
	return func(a *Analyzer) {
		if p != nil {
			a.provider = p
		}
	}
}

// NewAnalyzer creates an analyzer over ls. The slice is not retained.
func NewAnalyzer(ls []*layers.Layer, opts ...Option) *Analyzer {
	a := &Analyzer{
		input:    slices.Clone(ls),
		provider: digest.Default,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run sorts and resolves coverage.
func (a *Analyzer) Run() error {
	if err := a.Sort(); err != nil {
		return err
	}
	return a.Resolve()
}

func (a *Analyzer) State() State { return a.state }

// Sort orders the layers. Byte ranges that are not strictly nested make
// the history self-contradictory: every colliding pair is recorded as a
// finding and the StrangeByteRangesError is returned.
func (a *Analyzer) Sort() error {
	if a.state != Unprocessed {
		return fmt.Errorf("%w: sort from %s", ErrInvalidTransition, a.state)
	}

	sorted, err := layers.Sort(a.input)
	if err != nil {
		a.recordCollisions()
		a.logger.Warn("revision history is not strictly nested", zap.Error(err))
		return err
	}

	a.sorted = sorted
	for _, p := range layers.AmbiguousPairs(sorted) {
		a.addFinding(Finding{
			Kind:  FindingAmbiguousOrder,
			Layer: p.Later,
			Other: []layers.ID{p.Earlier},
		})
	}
	a.state = Sorted
	a.logger.Debug("layers sorted", zap.Int("layers", len(sorted)))
	return nil
}

// Resolve computes the covered set of every layer.
func (a *Analyzer) Resolve() error {
	if a.state != Sorted {
		return fmt.Errorf("%w: resolve from %s", ErrInvalidTransition, a.state)
	}

	resolved := make([]*layers.Layer, len(a.sorted))
	for i, l := range a.sorted {
		earlier := a.sorted[:i]
		covered := a.coveredBy(l, earlier, resolved[:i])
		resolved[i] = l.WithCoveredLayers(covered)

		if i == 0 {
			continue
		}
		if !hasEvidence(l) {
			a.addFinding(Finding{Kind: FindingNoCoverageEvidence, Layer: l.ID()})
			continue
		}
		// An unsigned revision protects nothing itself; only the last one
		// leaves the document exposed.
		if unsignedRevision(l) && i < len(a.sorted)-1 {
			continue
		}
		if missing := missingFrom(earlier, covered); len(missing) > 0 {
			a.addFinding(Finding{Kind: FindingIncompleteCoverage, Layer: l.ID(), Other: missing})
		}
	}

	a.sorted = resolved
	a.state = CoverageResolved
	a.logger.Debug("coverage resolved", zap.Int("layers", len(resolved)), zap.Int("findings", len(a.findings)))
	return nil
}

// coveredBy returns the IDs of the earlier layers that l protects, either
// directly or through a layer it protects.
func (a *Analyzer) coveredBy(l *layers.Layer, earlier, resolvedEarlier []*layers.Layer) []layers.ID {
	covered := make(map[layers.ID]bool)
	for _, e := range earlier {
		if a.directlyCovers(l, e) {
			covered[e.ID()] = true
		}
	}

	for changed := true; changed; {
		changed = false
		for i, e := range earlier {
			if covered[e.ID()] {
				continue
			}
			if parent, ok := e.EmbeddedIn(); ok && covered[parent] {
				covered[e.ID()] = true
				changed = true
				continue
			}
			for j := range earlier {
				if j == i || !covered[earlier[j].ID()] {
					continue
				}
				if slices.Contains(resolvedEarlier[j].CoveredLayers(), e.ID()) {
					covered[e.ID()] = true
					changed = true
					break
				}
			}
		}
	}

	ids := make([]layers.ID, 0, len(covered))
	for id := range covered {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (a *Analyzer) directlyCovers(l, e *layers.Layer) bool {
	if lr, ok := l.ByteRange(); ok {
		if er, ok := e.ByteRange(); ok {
			if byterange.Nested(er, lr) {
				return true
			}
		} else if end, ok := e.Position(); ok && end <= lr.FirstPartEnd() {
			return true
		}
	}

	table, ok := l.HashIndex()
	if !ok {
		return false
	}
	binding := e.RawBinding()
	if len(binding) == 0 {
		return false
	}
	found, err := table.ContainsAttributeDER(binding, a.provider)
	if err != nil {
		a.logger.Warn("hash index check failed",
			zap.Int("layer", int(l.ID())),
			zap.Int("candidate", int(e.ID())),
			zap.Error(err))
		return false
	}
	return found
}

// hasEvidence reports whether l is bound to the file or carries a hash
// index. Revisions count even without a byte range.
func hasEvidence(l *layers.Layer) bool {
	_, placed := l.Position()
	_, hasTable := l.HashIndex()
	return placed || hasTable
}

func unsignedRevision(l *layers.Layer) bool {
	_, hasRange := l.ByteRange()
	_, hasTable := l.HashIndex()
	_, placed := l.Position()
	return placed && !hasRange && !hasTable
}

func missingFrom(earlier []*layers.Layer, covered []layers.ID) []layers.ID {
	var missing []layers.ID
	for _, e := range earlier {
		if !slices.Contains(covered, e.ID()) {
			missing = append(missing, e.ID())
		}
	}
	return missing
}

func (a *Analyzer) recordCollisions() {
	for i, l := range a.input {
		lr, ok := l.ByteRange()
		if !ok {
			continue
		}
		for _, o := range a.input[i+1:] {
			or, ok := o.ByteRange()
			if ok && byterange.CollidingPair(lr, or) {
				a.addFinding(Finding{Kind: FindingCollision, Layer: l.ID(), Other: []layers.ID{o.ID()}})
			}
		}
	}
}

func (a *Analyzer) addFinding(f Finding) {
	a.findings = append(a.findings, f)
	a.logger.Debug("coverage finding", zap.Stringer("kind", f.Kind), zap.Int("layer", int(f.Layer)))
}

// Layers returns the layers in resolved order once sorted, and in input
// order before.
func (a *Analyzer) Layers() []*layers.Layer {
	if a.state == Unprocessed {
		return slices.Clone(a.input)
	}
	return slices.Clone(a.sorted)
}

// Findings returns the findings recorded so far.
func (a *Analyzer) Findings() []Finding {
	out := make([]Finding, len(a.findings))
	for i, f := range a.findings {
		out[i] = f.clone()
	}
	return out
}

// Latest returns the last layer in resolved order.
func (a *Analyzer) Latest() (*layers.Layer, bool) {
	if a.state == Unprocessed || len(a.sorted) == 0 {
		return nil, false
	}
	return a.sorted[len(a.sorted)-1], true
}

// CoverageSet returns the IDs covered by the layer. It requires resolved
// coverage.
func (a *Analyzer) CoverageSet(id layers.ID) ([]layers.ID, error) {
	if a.state != CoverageResolved {
		return nil, fmt.Errorf("%w: coverage set requested in state %s", ErrInvalidTransition, a.state)
	}
	for _, l := range a.sorted {
		if l.ID() == id {
			return l.CoveredLayers(), nil
		}
	}
	return nil, fmt.Errorf("unknown layer %d", id)
}

// IsCollision reports whether the layer's byte range collides with the
// range of any other layer.
func (a *Analyzer) IsCollision(id layers.ID) bool {
	var target *layers.Layer
	for _, l := range a.input {
		if l.ID() == id {
			target = l
			break
		}
	}
	if target == nil {
		return false
	}
	tr, ok := target.ByteRange()
	if !ok {
		return false
	}
	for _, o := range a.input {
		if o.ID() == id {
			continue
		}
		if or, ok := o.ByteRange(); ok && byterange.CollidingPair(tr, or) {
			return true
		}
	}
	return false
}
