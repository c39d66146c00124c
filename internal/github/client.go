// Package github resolves release versions and downloads release assets and
// raw repository files through the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	cleanhttp "github.com/hashicorp/go-cleanhttp"

	"github.com/strataos/installer/internal/config"
	"github.com/strataos/installer/internal/getter"
	"github.com/strataos/installer/internal/pattern"
)

const (
	defaultAPIBaseURL = "https://api.github.com"
	defaultRawBaseURL = "https://raw.githubusercontent.com"

	userAgent = "strata-installer"
)

// ErrNoReleases indicates a repository with no published releases to resolve
// the latest sentinel against.
var ErrNoReleases = errors.New("no releases found")

// APIError is a non-success response from the hosting API. It records whether
// a token was attached so "needs auth" is distinguishable from a bad request.
type APIError struct {
	Action        string
	Status        int
	Body          string
	Authenticated bool
}

func (e *APIError) Error() string {
	authMsg := "without auth"
	if e.Authenticated {
		authMsg = "with auth"
	}

	msg := fmt.Sprintf("failed to %s %s: HTTP %d", e.Action, authMsg, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}

	return msg
}

// Client talks to the GitHub API, optionally authenticated with a bearer
// token. The zero value is not usable; construct with New.
type Client struct {
	apiBaseURL string
	rawBaseURL string
	httpClient *http.Client
	token      string
	files      *getter.Getter
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURLs overrides the API and raw-content endpoints. Intended for
// testing against a local server.
func WithBaseURLs(apiBaseURL, rawBaseURL string) Option {
	return func(c *Client) {
		c.apiBaseURL = strings.TrimSuffix(apiBaseURL, "/")
		c.rawBaseURL = strings.TrimSuffix(rawBaseURL, "/")
	}
}

// New creates a Client. An empty token means anonymous access.
func New(token string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		apiBaseURL: defaultAPIBaseURL,
		rawBaseURL: defaultRawBaseURL,
		httpClient: cleanhttp.DefaultPooledClient(),
		token:      token,
		files:      getter.New(logger),
		logger:     logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type release struct {
	TagName string         `json:"tag_name"`
	Assets  []releaseAsset `json:"assets"`
}

type releaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

type contentEntry struct {
	Name string `json:"name"`
}

// ResolveVersion returns the concrete version for a repository. A literal
// version is returned unchanged without any network call; the latest sentinel
// queries the hosting API.
func (c *Client) ResolveVersion(ctx context.Context, repo *config.Repository) (string, error) {
	version := repo.ResolvedVersion()
	if version != config.VersionLatest {
		return version, nil
	}

	return c.latestVersion(ctx, repo.Owner, repo.Repo)
}

// latestVersion asks the latest-release endpoint first and falls back to the
// full release listing, taking the most recent entry's tag.
func (c *Client) latestVersion(ctx context.Context, owner, repo string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.apiBaseURL, owner, repo)

	body, err := c.get(ctx, url, fmt.Sprintf("fetch latest %q release", repo))
	if err == nil {
		var rel release
		if jsonErr := json.Unmarshal(body, &rel); jsonErr == nil && rel.TagName != "" {
			return rel.TagName, nil
		}
	}

	url = fmt.Sprintf("%s/repos/%s/%s/releases", c.apiBaseURL, owner, repo)

	body, err = c.get(ctx, url, fmt.Sprintf("fetch %q releases", repo))
	if err != nil {
		return "", err
	}

	var releases []release
	if err := json.Unmarshal(body, &releases); err != nil {
		return "", fmt.Errorf("decoding release list for %s/%s: %w", owner, repo, err)
	}

	if len(releases) == 0 {
		return "", fmt.Errorf("%s/%s: %w", owner, repo, ErrNoReleases)
	}

	if releases[0].TagName == "" {
		return "", fmt.Errorf("%s/%s: release has no tag name", owner, repo)
	}

	return releases[0].TagName, nil
}

// DownloadAssets downloads every release asset matching namePattern, minus
// any matching an exclude pattern, into destDir. It returns the written
// paths; an empty result is not an error.
func (c *Client) DownloadAssets(
	ctx context.Context,
	owner, repo, version, namePattern, destDir string,
	excludePatterns []string,
) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating asset directory %s: %w", destDir, err)
	}

	assets, err := c.releaseAssets(ctx, owner, repo, version)
	if err != nil {
		return nil, err
	}

	var downloaded []string

	for _, asset := range assets {
		if asset.Name == "" {
			return nil, fmt.Errorf("%s/%s release %s: asset has no name", owner, repo, version)
		}

		if !pattern.Match(asset.Name, namePattern) {
			continue
		}

		if excluded(asset.Name, excludePatterns) {
			c.logger.Debug("skipping excluded asset", "asset", asset.Name)

			continue
		}

		if asset.BrowserDownloadURL == "" {
			return nil, fmt.Errorf("asset %q has no download URL", asset.Name)
		}

		dest := filepath.Join(destDir, asset.Name)

		if err := c.files.FetchFile(ctx, asset.BrowserDownloadURL, dest); err != nil {
			return nil, fmt.Errorf("downloading asset %q: %w", asset.Name, err)
		}

		c.logger.Debug("downloaded asset", "asset", asset.Name, "dest", dest)
		downloaded = append(downloaded, dest)
	}

	return downloaded, nil
}

// DownloadRepoFile fetches a raw repository file at the given version. A
// wildcard in filePath turns the call into a directory listing filtered by
// the trailing path segment, downloading each match into dest as a directory.
func (c *Client) DownloadRepoFile(ctx context.Context, owner, repo, version, filePath, dest string) error {
	if strings.Contains(filePath, "*") {
		return c.downloadRepoGlob(ctx, owner, repo, version, filePath, dest)
	}

	url := fmt.Sprintf("%s/%s/%s/%s/%s", c.rawBaseURL, owner, repo, version, filePath)

	if err := c.files.FetchFile(ctx, url, dest); err != nil {
		return fmt.Errorf("downloading repo file %q: %w", filePath, err)
	}

	return nil
}

func (c *Client) downloadRepoGlob(ctx context.Context, owner, repo, version, filePath, destDir string) error {
	basePath := strings.TrimSuffix(strings.Split(filePath, "*")[0], "/")
	namePattern := path.Base(filePath)

	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.apiBaseURL, owner, repo, basePath)

	body, err := c.get(ctx, url, fmt.Sprintf("list contents of %q", repo))
	if err != nil {
		return err
	}

	var entries []contentEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return fmt.Errorf("decoding contents of %s/%s/%s: %w", owner, repo, basePath, err)
	}

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("creating directory %s: %w", destDir, err)
	}

	for _, entry := range entries {
		if !pattern.Match(entry.Name, namePattern) {
			continue
		}

		url := fmt.Sprintf("%s/%s/%s/%s/%s/%s", c.rawBaseURL, owner, repo, version, basePath, entry.Name)
		dest := filepath.Join(destDir, entry.Name)

		if err := c.files.FetchFile(ctx, url, dest); err != nil {
			return fmt.Errorf("downloading repo file %q: %w", entry.Name, err)
		}

		c.logger.Debug("downloaded repo file", "file", entry.Name, "dest", dest)
	}

	return nil
}

// releaseAssets lists the assets attached to a release tag, or to the latest
// release when version is the latest sentinel.
func (c *Client) releaseAssets(ctx context.Context, owner, repo, version string) ([]releaseAsset, error) {
	var url string
	if version == config.VersionLatest {
		url = fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.apiBaseURL, owner, repo)
	} else {
		url = fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", c.apiBaseURL, owner, repo, version)
	}

	body, err := c.get(ctx, url, fmt.Sprintf("fetch %q release", repo))
	if err != nil {
		return nil, err
	}

	var rel release
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("decoding release %s of %s/%s: %w", version, owner, repo, err)
	}

	return rel.Assets, nil
}

// get performs an authenticated GET and returns the response body, mapping
// non-success statuses to APIError.
func (c *Client) get(ctx context.Context, url, action string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}

	req.Header.Set("User-Agent", userAgent)

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", "url", url, "err", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Action:        action,
			Status:        resp.StatusCode,
			Body:          strings.TrimSpace(string(body)),
			Authenticated: c.token != "",
		}
	}

	return body, nil
}

func excluded(name string, excludePatterns []string) bool {
	for _, p := range excludePatterns {
		if pattern.Match(name, p) {
			return true
		}
	}

	return false
}
