package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLabelsWinOverPrefixes(t *testing.T) {
	assert.Equal(t, WorkBug, Classify([]string{"bug"}, "feat: add auth"))
	assert.Equal(t, WorkFeature, Classify([]string{"enhancement"}, "fix: typo"))
	assert.Equal(t, WorkDocumentation, Classify([]string{"Documentation"}, ""))
	assert.Equal(t, WorkRefactor, Classify([]string{"refactor"}, ""))
	assert.Equal(t, WorkChore, Classify([]string{"chore"}, ""))
}

func TestClassifyPrefixes(t *testing.T) {
	assert.Equal(t, WorkBug, Classify(nil, "fix: flaky login"))
	assert.Equal(t, WorkFeature, Classify(nil, "feat: add auth"))
	assert.Equal(t, WorkDocumentation, Classify(nil, "docs: refresh roadmap"))
	assert.Equal(t, WorkRefactor, Classify(nil, "refactor: extract store"))
	assert.Equal(t, WorkChore, Classify(nil, "chore: bump deps"))
	assert.Equal(t, WorkFeature, Classify(nil, "  Feat: case folded"))
}

func TestClassifyUnknown(t *testing.T) {
	assert.Equal(t, WorkUnknown, Classify(nil, "update things"))
	assert.Equal(t, WorkUnknown, Classify([]string{"question"}, ""))
}

func TestIsMergeCommit(t *testing.T) {
	assert.True(t, IsMergeCommit("Merge pull request #42 from octo/feature"))
	assert.False(t, IsMergeCommit("Revert \"Merge pull request #42\""))
	assert.False(t, IsMergeCommit("feat: merge strategy"))
}
