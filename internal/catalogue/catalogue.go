// Package catalogue exposes estate metadata to the pipeline: per-project
// noise configurations and project membership for repositories. The
// importer that populates a catalogue is an external collaborator; this
// package defines the read interface plus file and in-memory backends.
package catalogue

import "context"

// NoiseConfig is one project's event-filter configuration. Each
// category carries its own enable flag; a disabled category's entries
// are ignored even when the config itself is enabled.
type NoiseConfig struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`

	IgnoreAuthorsEnabled bool     `yaml:"ignore_authors_enabled"`
	IgnoreAuthors        []string `yaml:"ignore_authors"`

	IgnoreLabelsEnabled bool     `yaml:"ignore_labels_enabled"`
	IgnoreLabels        []string `yaml:"ignore_labels"`

	IgnoreTitlePrefixesEnabled bool     `yaml:"ignore_title_prefixes_enabled"`
	IgnoreTitlePrefixes        []string `yaml:"ignore_title_prefixes"`

	IgnorePathsEnabled bool     `yaml:"ignore_paths_enabled"`
	IgnorePaths        []string `yaml:"ignore_paths"`
}

// Catalogue is the read surface consumed by ingestion and reporting.
type Catalogue interface {
	// NoiseConfigs returns the noise configurations of every project
	// containing the repository.
	NoiseConfigs(ctx context.Context, repoSlug string) ([]NoiseConfig, error)

	// ProjectsForRepository returns the ids of projects containing the
	// repository, for project-scope coverage exclusion.
	ProjectsForRepository(ctx context.Context, repoSlug string) ([]string, error)
}
