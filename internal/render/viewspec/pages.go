package viewspec

import "github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"

// pageRef is a nullable page index that can hand out independent copies
type pageRef struct {
	idx int
	ok  bool
}

// Clone returns a fresh pointer for the page, or nil when unmatched
func (p pageRef) Clone() *int {
	if !p.ok {
		return nil
	}
	idx := p.idx
	return &idx
}

// pageIndex holds selected classified pages in classification order
type pageIndex struct {
	pages []domain.PageClassification
}

func newPageIndex(classifications []domain.PageClassification, selected []int) pageIndex {
	chosen := make(map[int]bool, len(selected))
	for _, idx := range selected {
		chosen[idx] = true
	}

	var pages []domain.PageClassification
	for _, c := range classifications {
		if chosen[c.PageIndex] {
			pages = append(pages, c)
		}
	}
	return pageIndex{pages: pages}
}

// first returns the first selected page whose type is one of types
func (p pageIndex) first(types ...domain.PageType) *int {
	return p.lookup(types...).Clone()
}

func (p pageIndex) lookup(types ...domain.PageType) pageRef {
	for _, page := range p.pages {
		for _, t := range types {
			if page.Type == t {
				return pageRef{idx: page.PageIndex, ok: true}
			}
		}
	}
	return pageRef{}
}
