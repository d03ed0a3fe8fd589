package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"repolens/internal/filegraph"
)

var (
	ErrNotFound = errors.New("github: repository not found")
	ErrNoFiles  = errors.New("github: repository has no files")
	ErrUpstream = errors.New("github: upstream error")
)

const DefaultAPIBase = "https://api.github.com"

// Lister returns the file listing of a repository.
type Lister interface {
	ListFiles(ctx context.Context, ref RepoRef) ([]filegraph.FileEntry, error)
}

type ClientConfig struct {
	BaseURL    string
	Token      string
	Exclude    []string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client lists repository files through the GitHub REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	exclude []glob.Glob
}

func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultAPIBase
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	exclude := make([]glob.Glob, 0, len(cfg.Exclude))
	for _, pattern := range cfg.Exclude {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("github: invalid exclude pattern %q: %w", pattern, err)
		}
		exclude = append(exclude, g)
	}
	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		http:    hc,
		exclude: exclude,
	}, nil
}

type repoInfo struct {
	DefaultBranch string `json:"default_branch"`
}

type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

// ListFiles returns the blob entries of the default branch, in API order.
func (c *Client) ListFiles(ctx context.Context, ref RepoRef) ([]filegraph.FileEntry, error) {
	repoPath := "/repos/" + url.PathEscape(ref.Owner) + "/" + url.PathEscape(ref.Repo)

	var info repoInfo
	if err := c.getJSON(ctx, repoPath, &info); err != nil {
		return nil, err
	}
	branch := strings.TrimSpace(info.DefaultBranch)
	if branch == "" {
		branch = "HEAD"
	}

	var tree treeResponse
	if err := c.getJSON(ctx, repoPath+"/git/trees/"+url.PathEscape(branch)+"?recursive=1", &tree); err != nil {
		return nil, err
	}

	out := make([]filegraph.FileEntry, 0, len(tree.Tree))
	for _, item := range tree.Tree {
		if item.Type != "blob" || c.excluded(item.Path) {
			continue
		}
		out = append(out, filegraph.FileEntry{Path: item.Path, Type: item.Type})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, ref)
	}
	if tree.Truncated {
		// The API caps recursive listings; only the returned prefix is used.
		logf("github: tree listing truncated by api repo=%s entries=%d", ref, len(out))
	}
	return out, nil
}

func (c *Client) excluded(p string) bool {
	for _, g := range c.exclude {
		if g.Match(p) {
			return true
		}
	}
	return false
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode == http.StatusConflict:
		// Empty repositories answer 409 on the trees endpoint.
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s", ErrNoFiles, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: GET %s: status %d: %s", ErrUpstream, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	return nil
}
