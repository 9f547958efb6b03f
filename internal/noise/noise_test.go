package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leynos/ghillie/internal/catalogue"
	"github.com/leynos/ghillie/internal/source"
)

func enabledConfig() catalogue.NoiseConfig {
	return catalogue.NoiseConfig{
		Name:    "platform",
		Enabled: true,

		IgnoreAuthorsEnabled: true,
		IgnoreAuthors:        []string{"Dependabot"},

		IgnoreLabelsEnabled: true,
		IgnoreLabels:        []string{"CHORE"},

		IgnoreTitlePrefixesEnabled: true,
		IgnoreTitlePrefixes:        []string{"chore(deps):"},

		IgnorePathsEnabled: true,
		IgnorePaths:        []string{"vendor/**"},
	}
}

func TestAllowAllDropsNothing(t *testing.T) {
	p := AllowAll()
	assert.False(t, p.Drop(&source.Event{Payload: map[string]any{"author": "dependabot"}}))
	assert.False(t, p.Drop(nil))
}

func TestCompileMatchesAuthorsCaseFolded(t *testing.T) {
	p := Compile([]catalogue.NoiseConfig{enabledConfig()})
	assert.True(t, p.Drop(&source.Event{Payload: map[string]any{"author": "DEPENDABOT"}}))
	assert.True(t, p.Drop(&source.Event{Payload: map[string]any{"author_name": "dependabot"}}))
	assert.False(t, p.Drop(&source.Event{Payload: map[string]any{"author": "alice"}}))
}

func TestCompileMatchesLabels(t *testing.T) {
	p := Compile([]catalogue.NoiseConfig{enabledConfig()})
	assert.True(t, p.Drop(&source.Event{Payload: map[string]any{"labels": []string{"bug", "chore"}}}))
	assert.True(t, p.Drop(&source.Event{Payload: map[string]any{"labels": []any{"Chore"}}}))
	assert.False(t, p.Drop(&source.Event{Payload: map[string]any{"labels": []string{"bug"}}}))
}

func TestCompileMatchesTitlePrefixes(t *testing.T) {
	p := Compile([]catalogue.NoiseConfig{enabledConfig()})
	assert.True(t, p.Drop(&source.Event{Payload: map[string]any{"title": "Chore(deps): bump x"}}))
	assert.True(t, p.Drop(&source.Event{Payload: map[string]any{"message": "chore(deps): bump y"}}))
	assert.False(t, p.Drop(&source.Event{Payload: map[string]any{"title": "feat: add auth"}}))
}

func TestCompileMatchesPathGlobs(t *testing.T) {
	p := Compile([]catalogue.NoiseConfig{enabledConfig()})
	assert.True(t, p.Drop(&source.Event{Payload: map[string]any{"path": "vendor/lib/a.go"}}))
	assert.True(t, p.Drop(&source.Event{Payload: map[string]any{"path": `vendor\lib\a.go`}}))
	assert.False(t, p.Drop(&source.Event{Payload: map[string]any{"path": "docs/guide.md"}}))
}

func TestDisabledConfigContributesNothing(t *testing.T) {
	cfg := enabledConfig()
	cfg.Enabled = false
	p := Compile([]catalogue.NoiseConfig{cfg})
	assert.False(t, p.Drop(&source.Event{Payload: map[string]any{"author": "dependabot"}}))
}

func TestDisabledCategoryContributesNothing(t *testing.T) {
	cfg := enabledConfig()
	cfg.IgnoreAuthorsEnabled = false
	p := Compile([]catalogue.NoiseConfig{cfg})
	assert.False(t, p.Drop(&source.Event{Payload: map[string]any{"author": "dependabot"}}))
	assert.True(t, p.Drop(&source.Event{Payload: map[string]any{"labels": []string{"chore"}}}))
}

func TestCompileMergesByUnion(t *testing.T) {
	other := catalogue.NoiseConfig{
		Name:                 "growth",
		Enabled:              true,
		IgnoreAuthorsEnabled: true,
		IgnoreAuthors:        []string{"renovate[bot]"},
	}
	p := Compile([]catalogue.NoiseConfig{enabledConfig(), other})
	assert.True(t, p.Drop(&source.Event{Payload: map[string]any{"author": "dependabot"}}))
	assert.True(t, p.Drop(&source.Event{Payload: map[string]any{"author": "renovate[bot]"}}))
}

func TestCompileSkipsBadGlobs(t *testing.T) {
	cfg := enabledConfig()
	cfg.IgnorePaths = []string{"[", "vendor/**"}
	p := Compile([]catalogue.NoiseConfig{cfg})
	assert.True(t, p.Drop(&source.Event{Payload: map[string]any{"path": "vendor/a.go"}}))
}
