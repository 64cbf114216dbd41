package matching

// MissingTags returns the wanted tags not covered by have, treating both as
// multisets: a tag wanted twice must be present twice. Extra tags in have
// are ignored. Returns nil when every wanted tag is present.
func MissingTags(have, want []string) []string {
	if len(want) == 0 {
		return nil
	}

	counts := make(map[string]int, len(have))
	for _, t := range have {
		counts[t]++
	}

	var missing []string
	for _, t := range want {
		if counts[t] > 0 {
			counts[t]--
			continue
		}
		missing = append(missing, t)
	}
	return missing
}

// ContainsTags reports whether have contains every tag in want (multiset subset).
func ContainsTags(have, want []string) bool {
	return len(MissingTags(have, want)) == 0
}
