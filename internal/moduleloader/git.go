package moduleloader

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
)

// GitBackend fetches a module source via a shallow git clone, resolving a
// branch, tag, or exact commit ref as appropriate.
type GitBackend struct{}

// NewGitBackend returns a GitBackend.
func NewGitBackend() *GitBackend { return &GitBackend{} }

// Fetch clones source (a "git::<url>[?ref=<ref>]" or bare
// "github.com/org/repo" address) into dest. version is used as the ref
// when the source address itself carries none.
func (b *GitBackend) Fetch(ctx context.Context, source, version, dest string) (Content, error) {
	repoURL, ref := parseGitSource(source)
	if ref == "" && version != "" && version != "latest" {
		ref = version
	}

	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("moduleloader: clean git dest %s: %w", dest, err)
	}

	cloneOpts := &git.CloneOptions{URL: repoURL, Depth: 1}
	if len(ref) == 40 {
		// Looks like a commit SHA: clone default branch, then check out the
		// exact commit below.
	} else if ref != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(ref)
		cloneOpts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, dest, cloneOpts)
	if err != nil && ref != "" && len(ref) != 40 {
		cloneOpts.ReferenceName = plumbing.NewTagReferenceName(ref)
		repo, err = git.PlainCloneContext(ctx, dest, cloneOpts)
	}
	if err != nil {
		return content{loaded: false}, nil
	}

	if len(ref) == 40 {
		wt, wErr := repo.Worktree()
		if wErr == nil {
			_ = wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(ref)})
		}
	}

	return content{loaded: true, path: dest}, nil
}

// parseGitSource splits a Terraform git module source into its repository
// URL and ref. It accepts the explicit "git::<url>?ref=<ref>" form as well
// as the bare "github.com/org/repo" shorthand.
func parseGitSource(source string) (repoURL, ref string) {
	s := strings.TrimPrefix(source, "git::")

	if idx := strings.Index(s, "?"); idx >= 0 {
		query := s[idx+1:]
		s = s[:idx]
		if q, err := url.ParseQuery(query); err == nil {
			ref = q.Get("ref")
		}
	}

	if strings.HasPrefix(s, "github.com/") {
		s = "https://" + s
		if !strings.HasSuffix(s, ".git") {
			s += ".git"
		}
	}

	return s, ref
}
