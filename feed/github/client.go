// Package github implements the release feed against the GitHub releases API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/stakeops/upgrade-monitor/model/release"
)

const defaultBaseURL = "https://api.github.com"

// perPage is the page size for release listing; GitHub caps it at 100.
const perPage = 100

// maxPages bounds pagination; the monitor only ever needs the recent release
// history, not the full archive.
const maxPages = 5

const (
	retryInterval    = time.Second
	retryIntervalMax = 10 * time.Second
	retryMaxAttempts = 4
)

// Client lists the published releases of a GitHub repository. Transient API
// failures are retried with exponential backoff, and requests are paced with
// a client-side rate limiter to stay within the API quota.
type Client struct {
	log     zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter

	baseURL string
	repo    string
	token   string
}

type Option func(*Client)

// WithBaseURL overrides the GitHub API base URL, for tests and proxies.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithToken sets a bearer token, which raises the API rate limits.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a release feed for the given "owner/name" repository.
func NewClient(log zerolog.Logger, repo string, opts ...Option) (*Client, error) {

	if !strings.Contains(repo, "/") {
		return nil, fmt.Errorf("repository must be of the form owner/name (%s)", repo)
	}

	c := &Client{
		log:     log.With().Str("component", "github_feed").Str("repo", repo).Logger(),
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		baseURL: defaultBaseURL,
		repo:    repo,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// releaseResponse is the subset of the GitHub release object the monitor
// consumes. PublishedAt is a pointer because draft releases carry null.
type releaseResponse struct {
	TagName     string     `json:"tag_name"`
	PublishedAt *time.Time `json:"published_at"`
}

// ListReleases returns the published releases of the repository, most recent
// pages first, skipping drafts without a publish time.
func (c *Client) ListReleases(ctx context.Context) ([]release.Tagged, error) {

	var tagged []release.Tagged

	for page := 1; page <= maxPages; page++ {
		batch, err := c.listPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("could not list releases page %d: %w", page, err)
		}

		for _, rel := range batch {
			if rel.PublishedAt == nil {
				continue
			}
			tagged = append(tagged, release.Tagged{
				TagName:     rel.TagName,
				PublishedAt: *rel.PublishedAt,
			})
		}

		if len(batch) < perPage {
			break
		}
	}

	c.log.Debug().Int("releases", len(tagged)).Msg("listed upstream releases")

	return tagged, nil
}

// listPage fetches a single page of releases, retrying transient failures.
func (c *Client) listPage(ctx context.Context, page int) ([]releaseResponse, error) {

	url := fmt.Sprintf("%s/repos/%s/releases?per_page=%d&page=%d", c.baseURL, c.repo, perPage, page)

	backoff, err := retry.NewExponential(retryInterval)
	if err != nil {
		return nil, fmt.Errorf("could not create retry mechanism: %w", err)
	}
	backoff = retry.WithCappedDuration(retryIntervalMax, backoff)
	backoff = retry.WithMaxRetries(retryMaxAttempts, backoff)

	var batch []releaseResponse
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {

		err := c.limiter.Wait(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			// network failures are worth retrying
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			// fall through to decoding
		case resp.StatusCode >= http.StatusInternalServerError,
			resp.StatusCode == http.StatusTooManyRequests:
			c.log.Warn().Int("status", resp.StatusCode).Int("page", page).Msg("retryable feed response")
			return retry.RetryableError(fmt.Errorf("api returned status %d", resp.StatusCode))
		default:
			return fmt.Errorf("api returned status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("could not read response: %w", err))
		}

		batch = batch[:0]
		err = json.Unmarshal(body, &batch)
		if err != nil {
			return fmt.Errorf("could not decode response: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return batch, nil
}
