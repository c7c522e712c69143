package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	gen := time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)
	embedded := 1
	return &Report{
		DocumentID:  "doc-1",
		Format:      "PAdES",
		Length:      4096,
		GeneratedAt: gen,
		Layers: []LayerReport{
			{ID: 1, Position: 0, Kind: "signature-timestamp", GenerationTime: &gen,
				ByteRange: "[0 100 160 40]", CoverageSet: []int{},
				HashIndex: HashIndexCheck{Status: StatusNotApplicable}},
			{ID: 2, Position: 1, Kind: "archive-timestamp", EmbeddedIn: &embedded,
				CoverageSet: []int{1},
				HashIndex:   HashIndexCheck{Status: StatusPassed, Version: "v3", Algorithm: "sha256", Records: 4}},
		},
	}
}

func TestConclude(t *testing.T) {
	t.Run("Passed", func(t *testing.T) {
		r := sampleReport()
		r.Conclude()
		assert.True(t, r.Conclusion.IsPassed())
		assert.Empty(t, r.Conclusion.SubIndication)
	})

	t.Run("HashFailure", func(t *testing.T) {
		r := sampleReport()
		r.Layers[1].HashIndex.Status = StatusFailed
		r.Layers[1].HashIndex.Detail = "2 unmatched"
		r.Conclude()
		assert.True(t, r.Conclusion.IsFailed())
		assert.Equal(t, SubIndicationHashFailure, r.Conclusion.SubIndication)
		assert.Equal(t, []string{"2 unmatched"}, r.Conclusion.Errors)
	})

	t.Run("CollisionWinsOverHashFailure", func(t *testing.T) {
		r := sampleReport()
		r.Layers[1].HashIndex.Status = StatusFailed
		r.Findings = []FindingReport{{Kind: "collision", Layer: 1, Others: []int{2}, Message: "collision"}}
		r.Conclude()
		assert.True(t, r.Conclusion.IsFailed())
		assert.Equal(t, SubIndicationStrangeByteRangesFound, r.Conclusion.SubIndication)
	})

	t.Run("AmbiguousOrder", func(t *testing.T) {
		r := sampleReport()
		r.Findings = []FindingReport{{Kind: "ambiguous-order", Layer: 2, Others: []int{1}, Message: "ambiguous"}}
		r.Conclude()
		assert.Equal(t, IndicationIndeterminate, r.Conclusion.Indication)
		assert.Equal(t, SubIndicationTimestampOrderFailure, r.Conclusion.SubIndication)
		assert.Equal(t, []string{"ambiguous"}, r.Conclusion.Warnings)
	})

	t.Run("IncompleteCoverageIsWarning", func(t *testing.T) {
		r := sampleReport()
		r.Findings = []FindingReport{{Kind: "incomplete-coverage", Layer: 2, Message: "missing #1"}}
		r.Conclude()
		assert.True(t, r.Conclusion.IsPassed())
		assert.Len(t, r.Conclusion.Warnings, 1)
	})

	t.Run("EnforceFullCoverage", func(t *testing.T) {
		r := sampleReport()
		r.Findings = []FindingReport{{Kind: "incomplete-coverage", Layer: 2, Message: "missing #1"}}
		r.Conclude()
		r.EnforceFullCoverage()
		assert.True(t, r.Conclusion.IsFailed())
		assert.Equal(t, SubIndicationSignedDataNotFound, r.Conclusion.SubIndication)
		assert.Equal(t, []string{"missing #1"}, r.Conclusion.Errors)
	})

	t.Run("ImprintFailure", func(t *testing.T) {
		r := sampleReport()
		r.Layers[0].Imprint = ImprintCheck{Status: StatusFailed, Algorithm: "sha256", Detail: "imprint mismatch"}
		r.Conclude()
		assert.True(t, r.Conclusion.IsFailed())
		assert.Equal(t, SubIndicationHashFailure, r.Conclusion.SubIndication)
		assert.Equal(t, []string{"imprint mismatch"}, r.Conclusion.Errors)
		assert.Contains(t, NewFormatter().FormatAsText(r), "Imprint: FAILED (sha256)")
	})

	t.Run("CollisionWinsOverImprintFailure", func(t *testing.T) {
		r := sampleReport()
		r.Layers[0].Imprint = ImprintCheck{Status: StatusFailed}
		r.Layers[1].Collision = true
		r.Conclude()
		assert.Equal(t, SubIndicationStrangeByteRangesFound, r.Conclusion.SubIndication)
	})

	t.Run("IndeterminateHashIndex", func(t *testing.T) {
		r := sampleReport()
		r.Layers[1].HashIndex.Status = StatusIndeterminate
		r.Conclude()
		assert.Equal(t, IndicationIndeterminate, r.Conclusion.Indication)
		assert.Equal(t, SubIndicationFormatFailure, r.Conclusion.SubIndication)
	})
}

func TestLookup(t *testing.T) {
	r := sampleReport()
	l, ok := r.Layer(2)
	require.True(t, ok)
	assert.Equal(t, 1, l.Position)
	_, ok = r.Layer(9)
	assert.False(t, ok)

	counts := r.Counts()
	assert.Equal(t, 1, counts[StatusPassed])
	assert.Equal(t, 1, counts[StatusNotApplicable])
}

func TestFormats(t *testing.T) {
	r := sampleReport()
	r.Findings = []FindingReport{{Kind: "incomplete-coverage", Layer: 2, Message: "layer #2 misses #1"}}
	r.Conclude()
	f := NewFormatter()

	t.Run("Text", func(t *testing.T) {
		out := f.FormatAsText(r)
		assert.Contains(t, out, "=== VALIDATION REPORT ===")
		assert.Contains(t, out, "Overall Result: PASSED")
		assert.Contains(t, out, "Byte Range: [0 100 160 40]")
		assert.Contains(t, out, "Embedded In: #1")
		assert.Contains(t, out, "Hash Index: PASSED (v3, sha256, 4 records)")
		assert.Contains(t, out, "[incomplete-coverage] layer #2 misses #1")
	})

	t.Run("TextWithoutFindings", func(t *testing.T) {
		f := NewFormatter()
		f.IncludeFindings = false
		assert.NotContains(t, f.FormatAsText(r), "Findings:")
	})

	t.Run("Markdown", func(t *testing.T) {
		out := f.FormatAsMarkdown(r)
		assert.Contains(t, out, "# Validation Report")
		assert.Contains(t, out, "| 2 | 2 | archive-timestamp | - | #1 | PASSED |")
	})

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.WriteTo(&buf, r, "json"))
		var decoded Report
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "doc-1", decoded.DocumentID)
		assert.Equal(t, []int{1}, decoded.Layers[1].CoverageSet)
		assert.Equal(t, IndicationPassed, decoded.Conclusion.Indication)
	})

	t.Run("XML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.WriteTo(&buf, r, "XML"))
		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "<?xml"))
		assert.Contains(t, out, `<ValidationReport DocumentId="doc-1">`)
		assert.Contains(t, out, `<Layer Id="2">`)
	})

	t.Run("DefaultIsText", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.WriteTo(&buf, r, "whatever"))
		assert.Contains(t, buf.String(), "=== VALIDATION REPORT ===")
	})

	t.Run("Summary", func(t *testing.T) {
		assert.Equal(t, "PASSED: 2 layers, 1 hash index passed, 0 failed, 1 findings", r.Summary())
	})
}
