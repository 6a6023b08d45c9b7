package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/stacklok/plugin-updater/internal/httpclient"
)

const (
	// DefaultEndpoint is the ServerMods files endpoint
	DefaultEndpoint = "https://servermods.forgesvc.net/servermods/files"

	apiKeyHeader = "X-API-Key"
)

// ServerModsFetcher reads the ServerMods files API, which answers with a JSON array
// of every file uploaded for a project, oldest first
type ServerModsFetcher struct {
	client   httpclient.Client
	endpoint string
}

// NewServerModsFetcher creates a fetcher for the given endpoint.
// An empty endpoint uses DefaultEndpoint.
func NewServerModsFetcher(client httpclient.Client, endpoint string) *ServerModsFetcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &ServerModsFetcher{
		client:   client,
		endpoint: endpoint,
	}
}

// Fetch returns the newest file of the project
func (f *ServerModsFetcher) Fetch(ctx context.Context, resourceID, apiKey string) (*Release, error) {
	query, err := f.queryURL(resourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	var opts []httpclient.RequestOption
	if apiKey != "" {
		opts = append(opts, httpclient.WithHeader(apiKeyHeader, apiKey))
	}

	body, err := f.client.Get(ctx, query, opts...)
	if err != nil {
		if httpclient.StatusCode(err) == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %v", ErrForbidden, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return parseFiles(body)
}

func (f *ServerModsFetcher) queryURL(resourceID string) (string, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid catalog endpoint %q: %w", f.endpoint, err)
	}
	q := u.Query()
	q.Set("projectIds", resourceID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseFiles picks the last element of the files array
func parseFiles(body []byte) (*Release, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ErrConnection)
	}

	files := gjson.ParseBytes(body)
	if !files.IsArray() {
		return nil, fmt.Errorf("%w: expected a JSON array of files", ErrConnection)
	}

	entries := files.Array()
	if len(entries) == 0 {
		return nil, ErrNotFound
	}

	latest := entries[len(entries)-1]
	release := &Release{
		Name:        latest.Get("name").String(),
		Link:        latest.Get("downloadUrl").String(),
		ReleaseType: latest.Get("releaseType").String(),
		GameVersion: latest.Get("gameVersion").String(),
	}

	slog.Debug("Catalog returned files",
		"count", len(entries),
		"latest", release.Name,
		"release_type", release.ReleaseType)

	return release, nil
}
