package extract

import "strings"

// parseImplications applies the deterministic filtering rules to a raw
// generation response. The rules must stay stable across releases: downstream
// consumers depend on the exact output for identical input.
//
//  1. Split into lines and trim each.
//  2. Drop lines shorter than MinLength.
//  3. Drop lines whose lowercase form starts with a filter prefix.
//  4. Drop lines starting with an opening bracket (stray formatting).
//  5. Keep original order, cap at MaxCount.
func parseImplications(response string, opts Options) []string {
	var implications []string

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < opts.MinLength {
			continue
		}
		if hasFilteredPrefix(line, opts.FilterPatterns) {
			continue
		}
		if isBracketArtifact(line) {
			continue
		}

		implications = append(implications, line)
		if len(implications) >= opts.MaxCount {
			break
		}
	}

	return implications
}

func hasFilteredPrefix(line string, patterns []string) bool {
	lower := strings.ToLower(line)
	for _, prefix := range patterns {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func isBracketArtifact(line string) bool {
	switch line[0] {
	case '[', '{', '(', '<':
		return true
	}
	return false
}
