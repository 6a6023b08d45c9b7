// Package catalog looks up the latest published release of a plugin in the
// remote release catalog.
package catalog

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the catalog has no files for the resource id
	ErrNotFound = errors.New("resource not found in catalog")

	// ErrForbidden is returned when the catalog rejects the API key
	ErrForbidden = errors.New("catalog rejected the api key")

	// ErrConnection is returned when the catalog cannot be reached or answers with garbage
	ErrConnection = errors.New("catalog connection failed")
)

// Release is the metadata of the newest file published for a resource
type Release struct {
	// Name is the release title, expected in the form "<title> v<version> [suffix]"
	Name string
	// Link is the download URL of the release artifact
	Link string
	// ReleaseType is the release channel (release, beta, alpha)
	ReleaseType string
	// GameVersion is the platform version the release targets
	GameVersion string
}

// Fetcher retrieves the latest release of a resource.
// Implementations wrap ErrNotFound, ErrForbidden or ErrConnection so callers can
// classify the failure with errors.Is.
//
//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks github.com/stacklok/plugin-updater/internal/catalog Fetcher
type Fetcher interface {
	Fetch(ctx context.Context, resourceID, apiKey string) (*Release, error)
}
