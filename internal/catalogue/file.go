package catalogue

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileDoc is the on-disk catalogue layout: a list of projects, each
// naming the repositories it contains and an optional noise config.
type fileDoc struct {
	Projects []fileProject `yaml:"projects"`
}

type fileProject struct {
	ID           string       `yaml:"id"`
	Repositories []string     `yaml:"repositories"`
	Noise        *NoiseConfig `yaml:"noise"`
}

// File is a YAML-backed catalogue, loaded once at construction.
type File struct {
	noise    map[string][]NoiseConfig
	projects map[string][]string
}

// LoadFile parses a catalogue YAML file.
func LoadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue %s: %w", path, err)
	}
	var doc fileDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalogue %s: %w", path, err)
	}

	f := &File{
		noise:    make(map[string][]NoiseConfig),
		projects: make(map[string][]string),
	}
	for _, project := range doc.Projects {
		if project.ID == "" {
			return nil, fmt.Errorf("parse catalogue %s: project without id", path)
		}
		for _, slug := range project.Repositories {
			f.projects[slug] = append(f.projects[slug], project.ID)
			if project.Noise != nil {
				cfg := *project.Noise
				if cfg.Name == "" {
					cfg.Name = project.ID
				}
				f.noise[slug] = append(f.noise[slug], cfg)
			}
		}
	}
	return f, nil
}

func (f *File) NoiseConfigs(_ context.Context, repoSlug string) ([]NoiseConfig, error) {
	return f.noise[repoSlug], nil
}

func (f *File) ProjectsForRepository(_ context.Context, repoSlug string) ([]string, error) {
	return f.projects[repoSlug], nil
}
