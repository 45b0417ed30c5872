package vcs

import (
	"context"
	"fmt"
	"log"

	git "github.com/go-git/go-git/v5"
)

// GitFetcher implements repository.RepoFetcher with shallow go-git clones.
type GitFetcher struct{}

func NewGitFetcher() *GitFetcher {
	return &GitFetcher{}
}

// Clone checks out url into dir at depth 1. The caller owns dir and its
// cleanup.
func (f *GitFetcher) Clone(ctx context.Context, url, dir string) error {
	log.Printf("[VCS] 📥 Cloning %s...", url)

	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          url,
		Depth:        1, // Shallow clone for efficiency
		SingleBranch: true,
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", url, err)
	}

	log.Printf("[VCS] ✅ Cloned %s into %s", url, dir)
	return nil
}
