package source

import "strings"

// ClassifyDocPath derives the roadmap and ADR flags for a documentation
// path. Both may be true; backslash separators are treated as slashes.
func ClassifyDocPath(path string) (isRoadmap, isADR bool) {
	p := strings.ToLower(strings.ReplaceAll(path, `\`, "/"))
	isRoadmap = strings.Contains(p, "roadmap")
	isADR = strings.Contains(p, "/adr") ||
		strings.HasSuffix(p, "adr") ||
		strings.Contains(p, "architecture-decision")
	return isRoadmap, isADR
}
