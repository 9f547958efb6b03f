package evidence

import (
	"regexp"
	"strings"
)

// mergeCommitPattern matches GitHub's default merge commit subject.
var mergeCommitPattern = regexp.MustCompile(`^Merge pull request #\d+`)

// IsMergeCommit reports whether a commit message is a merge commit.
func IsMergeCommit(message string) bool {
	return mergeCommitPattern.MatchString(message)
}

// labelWorkTypes maps case-folded labels to work types, checked in
// declaration order.
var labelWorkTypes = []struct {
	label string
	wt    WorkType
}{
	{"bug", WorkBug},
	{"feature", WorkFeature},
	{"enhancement", WorkFeature},
	{"documentation", WorkDocumentation},
	{"refactor", WorkRefactor},
	{"chore", WorkChore},
}

// prefixWorkTypes maps conventional title prefixes to work types.
var prefixWorkTypes = []struct {
	prefix string
	wt     WorkType
}{
	{"fix:", WorkBug},
	{"feat:", WorkFeature},
	{"docs:", WorkDocumentation},
	{"refactor:", WorkRefactor},
	{"chore:", WorkChore},
}

// Classify derives the work type from labels first, then the title or
// message prefix, falling back to UNKNOWN.
func Classify(labels []string, title string) WorkType {
	for _, candidate := range labelWorkTypes {
		for _, label := range labels {
			if strings.EqualFold(label, candidate.label) {
				return candidate.wt
			}
		}
	}
	folded := strings.ToLower(strings.TrimSpace(title))
	for _, candidate := range prefixWorkTypes {
		if strings.HasPrefix(folded, candidate.prefix) {
			return candidate.wt
		}
	}
	return WorkUnknown
}
