package catalogue

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalogue = `
projects:
  - id: platform
    repositories:
      - acme/widgets
      - acme/gadgets
    noise:
      enabled: true
      ignore_authors_enabled: true
      ignore_authors: [dependabot]
  - id: growth
    repositories:
      - acme/widgets
`

func writeCatalogue(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	cat, err := LoadFile(writeCatalogue(t, sampleCatalogue))
	require.NoError(t, err)

	projects, err := cat.ProjectsForRepository(context.Background(), "acme/widgets")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"platform", "growth"}, projects)

	configs, err := cat.NoiseConfigs(context.Background(), "acme/widgets")
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "platform", configs[0].Name)
	assert.True(t, configs[0].Enabled)
	assert.Equal(t, []string{"dependabot"}, configs[0].IgnoreAuthors)

	// Repos outside the catalogue resolve to nothing.
	projects, err = cat.ProjectsForRepository(context.Background(), "other/repo")
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestLoadFileRejectsProjectWithoutID(t *testing.T) {
	_, err := LoadFile(writeCatalogue(t, "projects:\n  - repositories: [a/b]\n"))
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestMemoryCatalogue(t *testing.T) {
	mem := NewMemory()
	mem.SetProjects("acme/widgets", []string{"platform"})
	mem.SetNoiseConfigs("acme/widgets", []NoiseConfig{{Name: "platform", Enabled: true}})

	projects, err := mem.ProjectsForRepository(context.Background(), "acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, []string{"platform"}, projects)

	configs, err := mem.NoiseConfigs(context.Background(), "acme/widgets")
	require.NoError(t, err)
	assert.Len(t, configs, 1)
}
