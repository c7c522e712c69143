package coverage

import (
	"fmt"
	"slices"

	"github.com/georgepadayatti/pdfltv/sign/layers"
)

// FindingKind classifies a non-fatal coverage outcome.
type FindingKind int

const (
	// FindingIncompleteCoverage: a later layer leaves earlier layers
	// unprotected.
	FindingIncompleteCoverage FindingKind = iota + 1
	// FindingNoCoverageEvidence: a layer is not bound to a position in the
	// file and carries no hash index.
	FindingNoCoverageEvidence
	// FindingAmbiguousOrder: two neighbours have no distinguishing
	// ordering evidence.
	FindingAmbiguousOrder
	// FindingCollision: two byte ranges are not strictly nested.
	FindingCollision
)

func (k FindingKind) String() string {
	switch k {
	case FindingIncompleteCoverage:
		return "incomplete-coverage"
	case FindingNoCoverageEvidence:
		return "no-coverage-evidence"
	case FindingAmbiguousOrder:
		return "ambiguous-order"
	case FindingCollision:
		return "collision"
	default:
		return fmt.Sprintf("FindingKind(%d)", int(k))
	}
}

// Finding is a verification outcome, reported as data.
type Finding struct {
	Kind  FindingKind
	Layer layers.ID
	// Other lists the layers involved besides Layer: the uncovered layers
	// for incomplete coverage, the neighbour or colliding layer otherwise.
	Other []layers.ID
}

func (f Finding) String() string {
	switch f.Kind {
	case FindingIncompleteCoverage:
		return fmt.Sprintf("layer %d does not cover layers %v", f.Layer, f.Other)
	case FindingNoCoverageEvidence:
		return fmt.Sprintf("layer %d carries no coverage evidence", f.Layer)
	case FindingAmbiguousOrder:
		return fmt.Sprintf("layer %d cannot be ordered against layers %v", f.Layer, f.Other)
	case FindingCollision:
		return fmt.Sprintf("byte range of layer %d collides with layers %v", f.Layer, f.Other)
	default:
		return fmt.Sprintf("%s on layer %d", f.Kind, f.Layer)
	}
}

func (f Finding) clone() Finding {
	f.Other = slices.Clone(f.Other)
	return f
}
