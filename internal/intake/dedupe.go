package intake

// DedupeActions removes actions whose (type, description, priority) triple is
// byte-for-byte equal to an earlier one. First occurrence wins; the count of
// dropped duplicates is returned for observability. This is deliberately
// conservative: rewordings and duplicates from separate messages are handled
// by the maintenance service's time-windowed check instead.
func DedupeActions(actions []Action) ([]Action, int) {
	if len(actions) < 2 {
		return actions, 0
	}

	seen := make(map[string]struct{}, len(actions))
	out := actions[:0:0]
	dropped := 0
	for _, action := range actions {
		key := action.dedupeKey()
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, action)
	}
	return out, dropped
}
