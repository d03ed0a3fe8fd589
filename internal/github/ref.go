package github

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var ErrInvalidRepoRef = errors.New("github: invalid repository reference")

// RepoRef identifies a repository as owner/name.
type RepoRef struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

func (r RepoRef) String() string { return r.Owner + "/" + r.Repo }

var (
	// ownerPattern follows GitHub's login rule: alphanumerics and hyphens,
	// not starting with a hyphen, at most 39 characters.
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,38}$`)
	namePattern  = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,100}$`)
)

// ParseRepoRef accepts a bare "owner/repo" token or a github.com URL
// ("https://github.com/owner/repo", "github.com/owner/repo/", "git@github.com:owner/repo.git").
// Path segments after the repository name are ignored for URLs.
func ParseRepoRef(raw string) (RepoRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RepoRef{}, fmt.Errorf("%w: empty input", ErrInvalidRepoRef)
	}

	if strings.HasPrefix(raw, "git@github.com:") {
		return refFromPath(strings.TrimPrefix(raw, "git@github.com:"), false, raw)
	}

	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "github.com/") || strings.HasPrefix(lower, "www.github.com/") {
		raw = "https://" + raw
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return RepoRef{}, fmt.Errorf("%w: %v", ErrInvalidRepoRef, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return RepoRef{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRepoRef, u.Scheme)
		}
		if !IsGitHubHost(u.Host) {
			return RepoRef{}, fmt.Errorf("%w: only github.com is supported", ErrInvalidRepoRef)
		}
		return refFromPath(u.Path, true, raw)
	}

	return refFromPath(raw, false, raw)
}

// IsGitHubHost reports whether host names github.com.
func IsGitHubHost(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	return host == "github.com" || host == "www.github.com"
}

func refFromPath(p string, allowExtra bool, raw string) (RepoRef, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(p), "/"), "/")
	if len(parts) < 2 || (!allowExtra && len(parts) != 2) {
		return RepoRef{}, fmt.Errorf("%w: %q", ErrInvalidRepoRef, raw)
	}
	owner := strings.TrimSpace(parts[0])
	repo := strings.TrimSuffix(strings.TrimSpace(parts[1]), ".git")
	if !ownerPattern.MatchString(owner) || !namePattern.MatchString(repo) || repo == "." || repo == ".." {
		return RepoRef{}, fmt.Errorf("%w: %q", ErrInvalidRepoRef, raw)
	}
	return RepoRef{Owner: owner, Repo: repo}, nil
}
