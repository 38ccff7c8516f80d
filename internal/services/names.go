package services

// Placeholder names used when a referenced user or profile no longer resolves.
const (
	placeholderTutor     = "Tutor"
	placeholderAnonymous = "Anonymous"
	placeholderUnknown   = "Unknown"
)

func nameOr(names map[string]string, id, fallback string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return fallback
}

func uniqueIDs(ids ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, group := range ids {
		for _, id := range group {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
