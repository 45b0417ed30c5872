package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/reposage/reposage-api/internal/domain/model"
	"github.com/reposage/reposage-api/internal/domain/repository"
)

// allowedExtensions lists the file types worth indexing. Everything else in a
// cloned repository is skipped.
var allowedExtensions = map[string]bool{
	".py":   true,
	".js":   true,
	".ts":   true,
	".java": true,
	".md":   true,
	".txt":  true,
}

// Loader clones a repository into a scratch directory and reads its
// text-bearing files into Documents.
type Loader struct {
	fetcher  repository.RepoFetcher
	cloneDir string
}

// NewLoader creates a Loader. cloneDir is the parent directory for scratch
// clones; empty means the system temp directory.
func NewLoader(fetcher repository.RepoFetcher, cloneDir string) *Loader {
	return &Loader{
		fetcher:  fetcher,
		cloneDir: cloneDir,
	}
}

// Load clones repoURL and returns one Document per indexable file. The scratch
// clone is removed before returning, on success and on failure. Individual
// files that cannot be read are skipped rather than aborting the load.
func (l *Loader) Load(ctx context.Context, repoURL string) ([]model.Document, error) {
	tmpDir, err := os.MkdirTemp(l.cloneDir, "reposage-clone-")
	if err != nil {
		return nil, fmt.Errorf("create clone dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			log.Printf("[Loader] ⚠️ Failed to remove clone dir %s: %v", tmpDir, rmErr)
		}
	}()

	if err := l.fetcher.Clone(ctx, repoURL, tmpDir); err != nil {
		return nil, fmt.Errorf("clone %s: %w", repoURL, err)
	}

	var docs []model.Document
	walkErr := filepath.WalkDir(tmpDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !allowedExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			log.Printf("[Loader] ⚠️ Skipping unreadable file %s: %v", path, readErr)
			return nil
		}
		// A NUL byte means binary content behind a text extension.
		if bytes.IndexByte(data, 0) >= 0 {
			return nil
		}

		content := strings.ToValidUTF8(string(data), "")
		if strings.TrimSpace(content) == "" {
			return nil
		}

		rel, relErr := filepath.Rel(tmpDir, path)
		if relErr != nil {
			rel = path
		}
		docs = append(docs, model.Document{
			Source:  filepath.ToSlash(rel),
			Content: content,
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk clone of %s: %w", repoURL, walkErr)
	}

	log.Printf("[Loader] ✅ Loaded %d documents from %s", len(docs), repoURL)
	return docs, nil
}
