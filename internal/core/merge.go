package core

import (
	"sort"

	"gwi.com/chatsync/internal/model"
)

// Merge overlays the optimistic set, the historical snapshot and the live
// snapshot, in that order, keyed by message id. A later source replaces an
// earlier entry with the same id but the entry keeps its first position, so
// insertion order is deterministic. Timestamped entries are stably sorted by
// CreatedAt; entries without a timestamp keep their insertion position.
//
// Merge is pure: the same three inputs always produce the same sequence.
func Merge(optimistic, historical, live []model.Message) []model.Message {
	index := make(map[string]int, len(optimistic)+len(historical)+len(live))
	out := make([]model.Message, 0, len(optimistic)+len(historical)+len(live))

	for _, source := range [][]model.Message{optimistic, historical, live} {
		for _, m := range source {
			if i, ok := index[m.ID]; ok {
				out[i] = m
				continue
			}
			index[m.ID] = len(out)
			out = append(out, m)
		}
	}

	// Timestamped entries are ordered among the slots they occupy; entries
	// without a timestamp stay in their insertion slot.
	slots := make([]int, 0, len(out))
	stamped := make([]model.Message, 0, len(out))
	for i, m := range out {
		if !m.CreatedAt.IsZero() {
			slots = append(slots, i)
			stamped = append(stamped, m)
		}
	}
	sort.SliceStable(stamped, func(i, j int) bool {
		return stamped[i].CreatedAt.Before(stamped[j].CreatedAt)
	})
	for k, i := range slots {
		out[i] = stamped[k]
	}
	return out
}
