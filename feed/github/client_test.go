package github_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakeops/upgrade-monitor/feed/github"
	"github.com/stakeops/upgrade-monitor/utils/unittest"
)

type apiRelease struct {
	TagName     string     `json:"tag_name"`
	PublishedAt *time.Time `json:"published_at"`
}

func TestListReleases(t *testing.T) {
	publishedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/paritytech/polkadot-sdk/releases", r.URL.Path)
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))

		err := json.NewEncoder(w).Encode([]apiRelease{
			{TagName: "polkadot-v1.15.2", PublishedAt: &publishedAt},
			{TagName: "polkadot-parachain-v1.15.2", PublishedAt: &publishedAt},
		})
		require.NoError(t, err)
	}))
	defer srv.Close()

	client, err := github.NewClient(unittest.Logger(), "paritytech/polkadot-sdk", github.WithBaseURL(srv.URL))
	require.NoError(t, err)

	tagged, err := client.ListReleases(context.Background())
	require.NoError(t, err)
	require.Len(t, tagged, 2)
	assert.Equal(t, "polkadot-v1.15.2", tagged[0].TagName)
	assert.True(t, publishedAt.Equal(tagged[0].PublishedAt))
}

// drafts carry a null publish time and must not reach the resolver
func TestListReleasesSkipsDrafts(t *testing.T) {
	publishedAt := time.Now().UTC()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := json.NewEncoder(w).Encode([]apiRelease{
			{TagName: "polkadot-v1.16.0", PublishedAt: nil},
			{TagName: "polkadot-v1.15.2", PublishedAt: &publishedAt},
		})
		require.NoError(t, err)
	}))
	defer srv.Close()

	client, err := github.NewClient(unittest.Logger(), "paritytech/polkadot-sdk", github.WithBaseURL(srv.URL))
	require.NoError(t, err)

	tagged, err := client.ListReleases(context.Background())
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "polkadot-v1.15.2", tagged[0].TagName)
}

func TestListReleasesSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	client, err := github.NewClient(
		unittest.Logger(),
		"paritytech/polkadot-sdk",
		github.WithBaseURL(srv.URL),
		github.WithToken("secret"),
	)
	require.NoError(t, err)

	_, err = client.ListReleases(context.Background())
	require.NoError(t, err)
}

func TestListReleasesRetriesServerError(t *testing.T) {
	publishedAt := time.Now().UTC()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		err := json.NewEncoder(w).Encode([]apiRelease{
			{TagName: "polkadot-v1.15.2", PublishedAt: &publishedAt},
		})
		require.NoError(t, err)
	}))
	defer srv.Close()

	client, err := github.NewClient(unittest.Logger(), "paritytech/polkadot-sdk", github.WithBaseURL(srv.URL))
	require.NoError(t, err)

	tagged, err := client.ListReleases(context.Background())
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, 2, calls)
}

func TestListReleasesClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := github.NewClient(unittest.Logger(), "paritytech/polkadot-sdk", github.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.ListReleases(context.Background())
	require.Error(t, err)
	// a 4xx is not retried
	assert.Equal(t, 1, calls)
}

func TestNewClientRejectsBadRepo(t *testing.T) {
	_, err := github.NewClient(unittest.Logger(), "not-a-repo")
	require.Error(t, err)
}
