// Package noise compiles catalogue-supplied filter configurations into
// a single event-drop predicate for the ingestion worker.
package noise

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/lo"

	"github.com/leynos/ghillie/internal/catalogue"
	"github.com/leynos/ghillie/internal/source"
)

// Predicate decides whether an event is noise. The zero value (and
// AllowAll) drops nothing.
type Predicate struct {
	authors       map[string]struct{}
	labels        map[string]struct{}
	titlePrefixes []string
	paths         []glob.Glob
}

// AllowAll returns a predicate that drops nothing. Catalogue read
// failures degrade to this rather than failing ingestion.
func AllowAll() *Predicate {
	return &Predicate{}
}

// Compile merges the enabled configurations by union. Disabled configs
// and disabled categories contribute nothing; unparseable path globs
// are skipped.
func Compile(configs []catalogue.NoiseConfig) *Predicate {
	p := &Predicate{
		authors: make(map[string]struct{}),
		labels:  make(map[string]struct{}),
	}
	enabled := lo.Filter(configs, func(cfg catalogue.NoiseConfig, _ int) bool {
		return cfg.Enabled
	})
	for _, cfg := range enabled {
		if cfg.IgnoreAuthorsEnabled {
			for _, author := range cfg.IgnoreAuthors {
				p.authors[strings.ToLower(author)] = struct{}{}
			}
		}
		if cfg.IgnoreLabelsEnabled {
			for _, label := range cfg.IgnoreLabels {
				p.labels[strings.ToLower(label)] = struct{}{}
			}
		}
		if cfg.IgnoreTitlePrefixesEnabled {
			for _, prefix := range cfg.IgnoreTitlePrefixes {
				p.titlePrefixes = append(p.titlePrefixes, strings.ToLower(prefix))
			}
		}
		if cfg.IgnorePathsEnabled {
			for _, pattern := range cfg.IgnorePaths {
				compiled, err := glob.Compile(normalizePath(pattern), '/')
				if err != nil {
					continue
				}
				p.paths = append(p.paths, compiled)
			}
		}
	}
	p.titlePrefixes = lo.Uniq(p.titlePrefixes)
	return p
}

// Drop reports whether the event matches any merged filter.
func (p *Predicate) Drop(ev *source.Event) bool {
	if ev == nil {
		return false
	}
	if p.matchAuthor(ev) || p.matchLabel(ev) || p.matchTitle(ev) || p.matchPath(ev) {
		return true
	}
	return false
}

func (p *Predicate) matchAuthor(ev *source.Event) bool {
	if len(p.authors) == 0 {
		return false
	}
	for _, key := range []string{"author", "author_name", "author_email"} {
		if candidate, ok := ev.Payload[key].(string); ok && candidate != "" {
			if _, hit := p.authors[strings.ToLower(candidate)]; hit {
				return true
			}
		}
	}
	return false
}

func (p *Predicate) matchLabel(ev *source.Event) bool {
	if len(p.labels) == 0 {
		return false
	}
	for _, label := range payloadStrings(ev.Payload["labels"]) {
		if _, hit := p.labels[strings.ToLower(label)]; hit {
			return true
		}
	}
	return false
}

func (p *Predicate) matchTitle(ev *source.Event) bool {
	if len(p.titlePrefixes) == 0 {
		return false
	}
	for _, key := range []string{"title", "message"} {
		candidate, ok := ev.Payload[key].(string)
		if !ok || candidate == "" {
			continue
		}
		folded := strings.ToLower(candidate)
		for _, prefix := range p.titlePrefixes {
			if strings.HasPrefix(folded, prefix) {
				return true
			}
		}
	}
	return false
}

func (p *Predicate) matchPath(ev *source.Event) bool {
	if len(p.paths) == 0 {
		return false
	}
	path, ok := ev.Payload["path"].(string)
	if !ok || path == "" {
		return false
	}
	normalized := normalizePath(path)
	for _, pattern := range p.paths {
		if pattern.Match(normalized) {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

func payloadStrings(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
