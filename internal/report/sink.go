package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leynos/ghillie/internal/types"
)

// Sink receives rendered report Markdown. Implementations must be safe
// for concurrent writes across distinct repositories.
type Sink interface {
	Write(repo *types.Repository, report *types.Report, markdown string) error
}

// FilesystemSink writes one file per report plus a rolling latest.md
// under root/owner/name/.
type FilesystemSink struct {
	root string
}

// NewFilesystemSink builds a sink rooted at path.
func NewFilesystemSink(path string) *FilesystemSink {
	return &FilesystemSink{root: path}
}

func (s *FilesystemSink) Write(repo *types.Repository, report *types.Report, markdown string) error {
	dir := filepath.Join(s.root, repo.Owner, repo.Name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create sink directory: %w", err)
	}

	// Colons are not portable in file names.
	stamp := report.GeneratedAt.UTC().Format("2006-01-02T15-04-05Z")
	payload := []byte(markdown)
	if err := os.WriteFile(filepath.Join(dir, stamp+".md"), payload, 0o640); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "latest.md"), payload, 0o640); err != nil {
		return fmt.Errorf("write latest report: %w", err)
	}
	return nil
}
