package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gwi.com/chatsync/internal/model"
)

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestMergeLaterSourceWins(t *testing.T) {
	optimistic := []model.Message{{ID: "a", Query: "q", Generating: true, CreatedAt: ts(1)}}
	historical := []model.Message{{ID: "a", Query: "q", Generating: true, CreatedAt: ts(1)}}
	live := []model.Message{{ID: "a", Query: "q", Response: "done", CreatedAt: ts(1)}}

	got := Merge(optimistic, historical, live)
	require.Len(t, got, 1)
	assert.Equal(t, "done", got[0].Response)
	assert.False(t, got[0].Generating)
}

func TestMergeNoDuplicateIDs(t *testing.T) {
	optimistic := []model.Message{{ID: "x", CreatedAt: ts(5)}, {ID: "y", CreatedAt: ts(6)}}
	historical := []model.Message{{ID: "a", CreatedAt: ts(1)}, {ID: "x", CreatedAt: ts(5)}}
	live := []model.Message{{ID: "a", CreatedAt: ts(1)}, {ID: "x", CreatedAt: ts(5)}, {ID: "y", CreatedAt: ts(6)}}

	got := Merge(optimistic, historical, live)
	assert.Equal(t, []string{"a", "x", "y"}, ids(got))
}

func TestMergeOrdersByTimestampRegardlessOfSource(t *testing.T) {
	m1 := model.Message{ID: "1", CreatedAt: ts(1)}
	m2 := model.Message{ID: "2", CreatedAt: ts(2)}
	m3 := model.Message{ID: "3", CreatedAt: ts(3)}

	perms := [][3][]model.Message{
		{{m3}, {m1}, {m2}},
		{{m1}, {m3}, {m2}},
		{{m2}, {m2, m3}, {m1}},
		{{m1, m2, m3}, nil, nil},
		{nil, nil, {m3, m2, m1}},
	}
	for _, p := range perms {
		got := Merge(p[0], p[1], p[2])
		assert.Equal(t, []string{"1", "2", "3"}, ids(got))
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	optimistic := []model.Message{{ID: "opt", CreatedAt: ts(9)}, {ID: "nots"}}
	historical := []model.Message{{ID: "h2", CreatedAt: ts(2)}, {ID: "h1", CreatedAt: ts(1)}}
	live := []model.Message{{ID: "h1", CreatedAt: ts(1), Response: "r"}, {ID: "l", CreatedAt: ts(3)}}

	first := Merge(optimistic, historical, live)
	second := Merge(optimistic, historical, live)
	assert.Equal(t, first, second)
}

func TestMergeUntimestampedKeepInsertionOrder(t *testing.T) {
	optimistic := []model.Message{{ID: "b"}, {ID: "a"}}
	live := []model.Message{{ID: "c"}}

	got := Merge(optimistic, nil, live)
	assert.Equal(t, []string{"b", "a", "c"}, ids(got))
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	live := []model.Message{{ID: "2", CreatedAt: ts(2)}, {ID: "1", CreatedAt: ts(1)}}
	_ = Merge(nil, nil, live)
	assert.Equal(t, "2", live[0].ID)
}

func TestMergeEmpty(t *testing.T) {
	got := Merge(nil, nil, nil)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestMergeOrdersTimestampedAroundUntimestamped(t *testing.T) {
	m1 := model.Message{ID: "1", CreatedAt: ts(1)}
	m2 := model.Message{ID: "2", CreatedAt: ts(2)}
	m3 := model.Message{ID: "3", CreatedAt: ts(3)}
	z := model.Message{ID: "z"}

	got := Merge([]model.Message{m3}, []model.Message{z}, []model.Message{m1})
	assert.Equal(t, []string{"1", "z", "3"}, ids(got))

	got = Merge([]model.Message{m3, z}, []model.Message{m2}, []model.Message{m1})
	assert.Equal(t, []string{"1", "z", "2", "3"}, ids(got))

	// The timestamped entries are always t1 < t2 < t3 whatever the source.
	for _, p := range [][3][]model.Message{
		{{z, m2}, {m3}, {m1}},
		{{m2}, {z, m1}, {m3}},
		{{m3, m2}, {z}, {m1}},
	} {
		var stamped []string
		for _, m := range Merge(p[0], p[1], p[2]) {
			if !m.CreatedAt.IsZero() {
				stamped = append(stamped, m.ID)
			}
		}
		assert.Equal(t, []string{"1", "2", "3"}, stamped)
	}
}
