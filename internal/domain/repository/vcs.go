package repository

import "context"

// RepoFetcher clones a remote repository into a local directory.
type RepoFetcher interface {
	Clone(ctx context.Context, url, dir string) error
}
