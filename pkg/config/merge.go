package config

// CoalesceString returns cliValue if non-empty, otherwise resolvedValue
// This is useful for merging CLI flags with resolved config values
func CoalesceString(cliValue, resolvedValue string) string {
	if cliValue != "" {
		return cliValue
	}
	return resolvedValue
}

// CoalesceInt returns cliValue if non-zero, otherwise resolvedValue
// This is useful for merging CLI flags with resolved config values
func CoalesceInt(cliValue, resolvedValue int) int {
	if cliValue != 0 {
		return cliValue
	}
	return resolvedValue
}

// MergeUnique appends the entries of extra missing from base, keeping order
func MergeUnique(base, extra []string) []string {
	result := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))

	for _, list := range [][]string{base, extra} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}

	return result
}
