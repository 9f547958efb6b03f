package catalogue

import (
	"context"
	"sync"
)

// Memory is an in-memory catalogue, used in tests and in deployments
// without an estate catalogue.
type Memory struct {
	mu       sync.RWMutex
	noise    map[string][]NoiseConfig
	projects map[string][]string
}

// NewMemory returns an empty in-memory catalogue.
func NewMemory() *Memory {
	return &Memory{
		noise:    make(map[string][]NoiseConfig),
		projects: make(map[string][]string),
	}
}

// SetNoiseConfigs replaces the noise configurations for a repository.
func (m *Memory) SetNoiseConfigs(repoSlug string, configs []NoiseConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noise[repoSlug] = configs
}

// SetProjects replaces the project membership for a repository.
func (m *Memory) SetProjects(repoSlug string, projectIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[repoSlug] = projectIDs
}

func (m *Memory) NoiseConfigs(_ context.Context, repoSlug string) ([]NoiseConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.noise[repoSlug], nil
}

func (m *Memory) ProjectsForRepository(_ context.Context, repoSlug string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.projects[repoSlug], nil
}
