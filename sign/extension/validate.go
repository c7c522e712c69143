package extension

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/georgepadayatti/pdfltv/sign/coverage"
	"github.com/georgepadayatti/pdfltv/sign/digest"
	"github.com/georgepadayatti/pdfltv/sign/hashindex"
	"github.com/georgepadayatti/pdfltv/sign/layers"
	"github.com/georgepadayatti/pdfltv/sign/timestamps"
	"github.com/georgepadayatti/pdfltv/sign/validation/report"
)

// Validate builds the validation report of a document: every layer in
// resolved order with the outcome of its checks, plus the coverage
// findings. Verification failures are reported, not returned.
// Colliding byte ranges make the history unusable: the report then lists
// the layers in arena order with their collisions and the structural
// error is returned alongside it.
func (c *Coordinator) Validate(doc *Document) (*report.Report, error) {
	rep := &report.Report{
		DocumentID:  doc.id.String(),
		Format:      doc.format.String(),
		Length:      doc.length,
		GeneratedAt: c.clock.Now().UTC(),
	}

	a := coverage.NewAnalyzer(doc.layers,
		coverage.WithLogger(c.logger),
		coverage.WithDigestProvider(c.provider))

	sortErr := a.Sort()
	if sortErr == nil {
		if err := a.Resolve(); err != nil {
			return nil, err
		}
	}

	for i, l := range a.Layers() {
		lr := layerReport(i, l)
		lr.Collision = a.IsCollision(l.ID())
		lr.HashIndex = c.checkHashIndex(doc, l)
		lr.Imprint = c.checkImprint(doc, l)
		rep.Layers = append(rep.Layers, lr)
	}
	for _, f := range a.Findings() {
		rep.Findings = append(rep.Findings, findingReport(f))
	}

	rep.Conclude()
	if c.config.RequireFullCoverage {
		rep.EnforceFullCoverage()
	}

	c.logger.Info("document validated",
		zap.Stringer("document", doc.id),
		zap.String("indication", rep.Conclusion.Indication),
		zap.Int("layers", len(rep.Layers)),
		zap.Int("findings", len(rep.Findings)))
	return rep, sortErr
}

func layerReport(pos int, l *layers.Layer) report.LayerReport {
	lr := report.LayerReport{
		ID:          int(l.ID()),
		Position:    pos,
		Kind:        l.Kind().String(),
		CoverageSet: []int{},
	}
	if t, ok := l.GenerationTime(); ok {
		t := t.UTC()
		lr.GenerationTime = &t
	}
	if r, ok := l.ByteRange(); ok {
		lr.ByteRange = r.String()
	}
	if parent, ok := l.EmbeddedIn(); ok {
		p := int(parent)
		lr.EmbeddedIn = &p
	}
	for _, id := range l.CoveredLayers() {
		lr.CoverageSet = append(lr.CoverageSet, int(id))
	}
	return lr
}

func (c *Coordinator) checkHashIndex(doc *Document, l *layers.Layer) report.HashIndexCheck {
	table, ok := l.HashIndex()
	if !ok {
		return report.HashIndexCheck{Status: report.StatusNotApplicable}
	}
	check := report.HashIndexCheck{
		Version:   table.Version().String(),
		Algorithm: digest.Name(table.Algorithm()),
		Records:   table.RecordCount(),
	}

	material, ok := doc.Material(l.ID())
	if !ok {
		check.Status = report.StatusIndeterminate
		check.Detail = fmt.Sprintf("layer %d: no signature material recorded for its hash index", l.ID())
		return check
	}

	res, err := hashindex.Verify(material, table, c.provider)
	if err != nil {
		check.Status = report.StatusIndeterminate
		check.Detail = fmt.Sprintf("layer %d: %v", l.ID(), err)
		return check
	}
	check.Unmatched = len(res.UnmatchedCertificates) + len(res.UnmatchedRevocations) + len(res.UnmatchedAttributes)
	if res.Match {
		check.Status = report.StatusPassed
		return check
	}
	check.Status = report.StatusFailed
	check.Detail = fmt.Sprintf("layer %d: %d hash index entries do not match the signature material", l.ID(), check.Unmatched)
	return check
}

func (c *Coordinator) checkImprint(doc *Document, l *layers.Layer) report.ImprintCheck {
	sc, ok := doc.stamped[l.ID()]
	if !ok {
		return report.ImprintCheck{Status: report.StatusNotApplicable}
	}
	check := report.ImprintCheck{
		Algorithm: digest.Name(sc.token.Info.MessageImprint.HashAlgorithm.Algorithm),
	}
	switch err := sc.token.VerifyImprint(sc.content, c.provider); {
	case err == nil:
		check.Status = report.StatusPassed
	case errors.Is(err, timestamps.ErrTimestampMismatch):
		check.Status = report.StatusFailed
		check.Detail = fmt.Sprintf("layer %d: message imprint does not match the signed bytes", l.ID())
	default:
		check.Status = report.StatusIndeterminate
		check.Detail = fmt.Sprintf("layer %d: %v", l.ID(), err)
	}
	return check
}

func findingReport(f coverage.Finding) report.FindingReport {
	fr := report.FindingReport{
		Kind:    f.Kind.String(),
		Layer:   int(f.Layer),
		Message: f.String(),
	}
	for _, id := range f.Other {
		fr.Others = append(fr.Others, int(id))
	}
	return fr
}
