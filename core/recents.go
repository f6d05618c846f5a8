package core

// MaxRecents bounds the per-user recently-visited list.
const MaxRecents = 10

// VisitRecent returns the recents list after a visit to boardID: any
// prior occurrence is removed, the id is prepended, and the result is
// truncated to MaxRecents. The input slice is not modified.
//
// The surrounding load-compute-save on User.Recents is last-write-wins
// under concurrent visits by the same user; the list is a best-effort
// convenience, which is acceptable there.
func VisitRecent(current []string, boardID string) []string {
	out := make([]string, 0, len(current)+1)
	out = append(out, boardID)
	for _, id := range current {
		if id != boardID {
			out = append(out, id)
		}
	}
	if len(out) > MaxRecents {
		out = out[:MaxRecents]
	}
	return out
}
