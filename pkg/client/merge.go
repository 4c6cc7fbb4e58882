package client

import (
	"slices"
	"strings"

	"marketchat/internal/core/domain"
)

// UpsertMessageByID replaces the message with next's id, or appends next. The input slice
// is not modified.
func UpsertMessageByID(msgs []domain.MessagePayload, next domain.MessagePayload) []domain.MessagePayload {
	out := slices.Clone(msgs)
	for i := range out {
		if out[i].ID == next.ID {
			out[i] = next
			return out
		}
	}
	return append(out, next)
}

// MergeHistory folds incoming into current (incoming wins on equal ids) and orders the
// result by createdAt. Messages with equal timestamps keep the order they arrived in,
// which for a server page is send order.
func MergeHistory(current, incoming []domain.MessagePayload) []domain.MessagePayload {
	out := slices.Clone(current)
	for _, m := range incoming {
		out = UpsertMessageByID(out, m)
	}
	slices.SortStableFunc(out, compareMessages)
	return out
}

func compareMessages(a, b domain.MessagePayload) int {
	ta, errA := domain.ParseTime(a.CreatedAt)
	tb, errB := domain.ParseTime(b.CreatedAt)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return strings.Compare(a.CreatedAt, b.CreatedAt)
}
