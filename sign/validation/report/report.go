// Package report provides the validation report of a document's
// protective layers.
// The indication vocabulary follows ETSI EN 319 102-1.
package report

import (
	"encoding/xml"
	"time"
)

// Validation Indication values per ETSI EN 319 102-1
const (
	IndicationPassed        = "PASSED"
	IndicationFailed        = "FAILED"
	IndicationIndeterminate = "INDETERMINATE"
)

// Sub-indication values used by layer validation
const (
	SubIndicationFormatFailure          = "FORMAT_FAILURE"
	SubIndicationHashFailure            = "HASH_FAILURE"
	SubIndicationTimestampOrderFailure  = "TIMESTAMP_ORDER_FAILURE"
	SubIndicationSignedDataNotFound     = "SIGNED_DATA_NOT_FOUND"
	SubIndicationStrangeByteRangesFound = "STRANGE_BYTE_RANGES"
)

// Hash-index check statuses
const (
	StatusPassed        = "PASSED"
	StatusFailed        = "FAILED"
	StatusNotApplicable = "NOT_APPLICABLE"
	StatusIndeterminate = "INDETERMINATE"
)

// Conclusion is the overall outcome.
type Conclusion struct {
	Indication    string   `json:"indication" xml:"Indication"`
	SubIndication string   `json:"subIndication,omitempty" xml:"SubIndication,omitempty"`
	Errors        []string `json:"errors,omitempty" xml:"Errors>Error,omitempty"`
	Warnings      []string `json:"warnings,omitempty" xml:"Warnings>Warning,omitempty"`
}

// IsPassed returns true if the indication is PASSED.
func (c Conclusion) IsPassed() bool { return c.Indication == IndicationPassed }

// IsFailed returns true if the indication is FAILED.
func (c Conclusion) IsFailed() bool { return c.Indication == IndicationFailed }

// HashIndexCheck is the outcome of recomputing a layer's hash index.
type HashIndexCheck struct {
	Status    string `json:"status" xml:"Status"`
	Version   string `json:"version,omitempty" xml:"Version,omitempty"`
	Algorithm string `json:"algorithm,omitempty" xml:"Algorithm,omitempty"`
	Records   int    `json:"records,omitempty" xml:"Records,omitempty"`
	Unmatched int    `json:"unmatched,omitempty" xml:"Unmatched,omitempty"`
	Detail    string `json:"detail,omitempty" xml:"Detail,omitempty"`
}

// ImprintCheck is the outcome of comparing a document timestamp's message
// imprint with the digest of the bytes its range covers.
type ImprintCheck struct {
	Status    string `json:"status" xml:"Status"`
	Algorithm string `json:"algorithm,omitempty" xml:"Algorithm,omitempty"`
	Detail    string `json:"detail,omitempty" xml:"Detail,omitempty"`
}

// LayerReport describes one layer in resolved order.
type LayerReport struct {
	ID             int            `json:"id" xml:"Id,attr"`
	Position       int            `json:"position" xml:"Position"`
	Kind           string         `json:"kind" xml:"Kind"`
	GenerationTime *time.Time     `json:"generationTime,omitempty" xml:"GenerationTime,omitempty"`
	ByteRange      string         `json:"byteRange,omitempty" xml:"ByteRange,omitempty"`
	EmbeddedIn     *int           `json:"embeddedIn,omitempty" xml:"EmbeddedIn,omitempty"`
	CoverageSet    []int          `json:"coverageSet" xml:"CoverageSet>Layer"`
	HashIndex      HashIndexCheck `json:"hashIndex" xml:"HashIndex"`
	Imprint        ImprintCheck   `json:"imprint" xml:"Imprint"`
	Collision      bool           `json:"collision" xml:"Collision"`
}

// FindingReport is a non-fatal finding.
type FindingReport struct {
	Kind    string `json:"kind" xml:"Kind"`
	Layer   int    `json:"layer" xml:"Layer"`
	Others  []int  `json:"others,omitempty" xml:"Others>Layer,omitempty"`
	Message string `json:"message" xml:"Message"`
}

// Report is the validation report of one document.
type Report struct {
	XMLName     xml.Name        `json:"-" xml:"ValidationReport"`
	DocumentID  string          `json:"documentId" xml:"DocumentId,attr"`
	Format      string          `json:"format" xml:"Format"`
	Length      int64           `json:"length" xml:"Length"`
	GeneratedAt time.Time       `json:"generatedAt" xml:"GeneratedAt"`
	Conclusion  Conclusion      `json:"conclusion" xml:"Conclusion"`
	Layers      []LayerReport   `json:"layers" xml:"Layers>Layer"`
	Findings    []FindingReport `json:"findings,omitempty" xml:"Findings>Finding,omitempty"`
}

// Conclude derives the conclusion from the layers and findings. Hash and
// imprint failures fail the document, as do collisions. Ambiguous ordering
// makes it indeterminate and other findings become warnings.
func (r *Report) Conclude() {
	c := Conclusion{Indication: IndicationPassed}

	for _, l := range r.Layers {
		switch {
		case l.Collision:
			c.Indication = IndicationFailed
			c.SubIndication = SubIndicationStrangeByteRangesFound
		case l.HashIndex.Status == StatusFailed:
			c.Indication = IndicationFailed
			if c.SubIndication == "" {
				c.SubIndication = SubIndicationHashFailure
			}
		case l.HashIndex.Status == StatusIndeterminate && c.Indication == IndicationPassed:
			c.Indication = IndicationIndeterminate
			c.SubIndication = SubIndicationFormatFailure
		}
		if l.HashIndex.Status == StatusFailed || l.HashIndex.Status == StatusIndeterminate {
			c.Errors = append(c.Errors, l.HashIndex.Detail)
		}
		if l.Imprint.Status == StatusFailed {
			if c.Indication != IndicationFailed {
				c.Indication = IndicationFailed
				c.SubIndication = SubIndicationHashFailure
			}
			c.Errors = append(c.Errors, l.Imprint.Detail)
		}
	}

	for _, f := range r.Findings {
		switch f.Kind {
		case "collision":
			c.Indication = IndicationFailed
			c.SubIndication = SubIndicationStrangeByteRangesFound
			c.Errors = append(c.Errors, f.Message)
		case "ambiguous-order":
			if c.Indication == IndicationPassed {
				c.Indication = IndicationIndeterminate
				c.SubIndication = SubIndicationTimestampOrderFailure
			}
			c.Warnings = append(c.Warnings, f.Message)
		default:
			c.Warnings = append(c.Warnings, f.Message)
		}
	}

	r.Conclusion = c
}

// EnforceFullCoverage fails the report when a layer leaves earlier
// layers unprotected. It is applied after Conclude.
func (r *Report) EnforceFullCoverage() {
	for _, f := range r.Findings {
		if f.Kind != "incomplete-coverage" && f.Kind != "no-coverage-evidence" {
			continue
		}
		if r.Conclusion.Indication != IndicationFailed {
			r.Conclusion.Indication = IndicationFailed
			r.Conclusion.SubIndication = SubIndicationSignedDataNotFound
		}
		r.Conclusion.Errors = append(r.Conclusion.Errors, f.Message)
	}
}

// Layer returns the report of the layer with the given ID.
func (r *Report) Layer(id int) (LayerReport, bool) {
	for _, l := range r.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return LayerReport{}, false
}

// Counts returns the number of hash-index checks per status.
func (r *Report) Counts() map[string]int {
	counts := make(map[string]int)
	for _, l := range r.Layers {
		counts[l.HashIndex.Status]++
	}
	return counts
}
