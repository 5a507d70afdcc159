package core

import "sort"

// PendingIndex is the set of message ids awaiting generation. Membership alone
// drives the "assistant is generating" indicator.
type PendingIndex struct {
	ids map[string]struct{}
}

func NewPendingIndex() *PendingIndex {
	return &PendingIndex{ids: make(map[string]struct{})}
}

func (p *PendingIndex) Add(id string) {
	p.ids[id] = struct{}{}
}

func (p *PendingIndex) Remove(id string) bool {
	if _, ok := p.ids[id]; !ok {
		return false
	}
	delete(p.ids, id)
	return true
}

func (p *PendingIndex) Rekey(oldID, newID string) bool {
	if _, ok := p.ids[oldID]; !ok {
		return false
	}
	delete(p.ids, oldID)
	p.ids[newID] = struct{}{}
	return true
}

func (p *PendingIndex) Has(id string) bool {
	_, ok := p.ids[id]
	return ok
}

func (p *PendingIndex) Len() int {
	return len(p.ids)
}

// Generating is true iff the index is non-empty.
func (p *PendingIndex) Generating() bool {
	return len(p.ids) > 0
}

func (p *PendingIndex) IDs() []string {
	out := make([]string, 0, len(p.ids))
	for id := range p.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (p *PendingIndex) Reset() {
	p.ids = make(map[string]struct{})
}
