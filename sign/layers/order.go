package layers

import (
	"cmp"
	"slices"

	"github.com/georgepadayatti/pdfltv/pdf/byterange"
)

// Compare orders two layers of the same document.
//
// Layers bound to a container position (a byte range or a revision end)
// are ordered by that position alone; generation times never override it.
// A layer without a position sorts before every positioned layer. Layers at the same position, or both without
// one, are ordered by their evidence: a known generation time on both
// sides decides first. On equal times the layer whose hash index holds
// fewer records is earlier, and a layer with a hash index sorts after one
// without. Evidence records compare by generation time alone. Layers with
// no distinguishing evidence compare equal.
//
// Compare only sees the two layers; Sort also places a layer at the
// position of the revision it is embedded in.
func Compare(a, b *Layer) int {
	return compare(a, b, ownPlacement(a), ownPlacement(b))
}

// placement is where a layer sits in the container. inherited is set when
// the position comes from the revision the layer is embedded in.
type placement struct {
	pos       int64
	ok        bool
	inherited bool
}

func ownPlacement(l *Layer) placement {
	pos, ok := l.Position()
	return placement{pos: pos, ok: ok}
}

func compare(a, b *Layer, pa, pb placement) int {
	switch {
	case pa.ok && pb.ok:
		if c := cmp.Compare(pa.pos, pb.pos); c != 0 {
			return c
		}
		// A revision precedes the layers embedded in it.
		if pa.inherited != pb.inherited {
			if pa.inherited {
				return 1
			}
			return -1
		}
	case pa.ok:
		return 1
	case pb.ok:
		return -1
	}
	return compareEvidence(a, b)
}

func compareEvidence(a, b *Layer) int {
	ka, kb := a.OrderingKey(), b.OrderingKey()
	if ka.HasTime && kb.HasTime {
		if c := ka.GenerationTime.Compare(kb.GenerationTime); c != 0 {
			return c
		}
	}

	if a.kind == KindEvidenceRecord || b.kind == KindEvidenceRecord {
		return 0
	}

	if ka.HasTable && kb.HasTable {
		return cmp.Compare(ka.RecordCount, kb.RecordCount)
	}

	switch {
	case ka.HasTable && !kb.HasTable:
		return 1
	case !ka.HasTable && kb.HasTable:
		return -1
	}
	return 0
}

// orderer compares layers of one document with the placements resolved
// through EmbeddedIn links.
type orderer map[ID]placement

func newOrderer(ls []*Layer) orderer {
	byID := make(map[ID]*Layer, len(ls))
	for _, l := range ls {
		byID[l.id] = l
	}
	o := make(orderer, len(ls))
	for _, l := range ls {
		o[l.id] = resolvePlacement(l, byID)
	}
	return o
}

// resolvePlacement follows EmbeddedIn links up to the nearest layer with a
// position. Cycles and unknown parents leave the layer unplaced.
func resolvePlacement(l *Layer, byID map[ID]*Layer) placement {
	inherited := false
	for range len(byID) + 1 {
		if pos, ok := l.Position(); ok {
			return placement{pos: pos, ok: true, inherited: inherited}
		}
		parentID, ok := l.EmbeddedIn()
		if !ok {
			break
		}
		parent, ok := byID[parentID]
		if !ok {
			break
		}
		l, inherited = parent, true
	}
	return placement{}
}

func (o orderer) compare(a, b *Layer) int {
	return compare(a, b, o[a.id], o[b.id])
}

// CheckByteRanges returns a *byterange.StrangeByteRangesError for the
// first pair of layers whose byte ranges are not strictly nested.
func CheckByteRanges(ls []*Layer) error {
	for i, a := range ls {
		if !a.hasRange {
			continue
		}
		for _, b := range ls[i+1:] {
			if !b.hasRange {
				continue
			}
			if _, err := byterange.Compare(a.byteRange, b.byteRange); err != nil {
				return err
			}
		}
	}
	return nil
}

// Sort returns the layers from earliest to latest. Layers without a
// position of their own take the position of the revision they are
// embedded in. Equal layers are kept in ID order, so the result does not
// depend on the order of the input, which is left untouched.
func Sort(ls []*Layer) ([]*Layer, error) {
	if err := CheckByteRanges(ls); err != nil {
		return nil, err
	}
	sorted := slices.Clone(ls)
	slices.SortFunc(sorted, func(a, b *Layer) int { return cmp.Compare(a.id, b.id) })
	slices.SortStableFunc(sorted, newOrderer(sorted).compare)
	return sorted, nil
}

// Pair is two layer IDs in resolved order.
type Pair struct {
	Earlier ID
	Later   ID
}

// AmbiguousPairs lists neighbours in a sorted sequence that have no
// distinguishing ordering evidence.
func AmbiguousPairs(sorted []*Layer) []Pair {
	o := newOrderer(sorted)
	var pairs []Pair
	for i := 1; i < len(sorted); i++ {
		if o.compare(sorted[i-1], sorted[i]) == 0 {
			pairs = append(pairs, Pair{Earlier: sorted[i-1].id, Later: sorted[i].id})
		}
	}
	return pairs
}
