package types

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// AuthPrompt is what the UI needs to walk the user through an auth flow.
type AuthPrompt struct {
	// VerificationURL is where the user confirms the device/pin, or the
	// OAuth redirect URL for callback flows.
	VerificationURL string
	// UserCode is displayed to the user (device user code, pin). Empty for
	// callback flows.
	UserCode string
	// PollCode is the opaque handle passed back to CompleteAuth for flows
	// that poll (device code, pin check token). For callback flows the
	// caller passes the callback URL instead.
	PollCode string
	Interval time.Duration
	ExpiresIn time.Duration
}

// Authenticator is the per-provider credential lifecycle.
type Authenticator interface {
	// BeginAuth starts the flow and returns what the user must do next.
	BeginAuth(ctx context.Context) (*AuthPrompt, error)
	// CompleteAuth exchanges the prompt's poll code (or a callback URL) for
	// a token. Polling flows block until confirmed, ctx cancelled, or the
	// prompt expires.
	CompleteAuth(ctx context.Context, code string) (string, error)
	// SetToken installs a credential for subsequent API calls. An empty
	// token clears it.
	SetToken(token string)
	// RequiresManualRevocation reports that logout only clears the local
	// token and the user must revoke access on the provider's site.
	RequiresManualRevocation() bool
}

// Client is one debrid provider. Aggregator and Resolver operate only
// against this interface (plus the optional capability interfaces below).
type Client interface {
	Authenticator

	Name() Provider
	Logger() zerolog.Logger

	// CheckAvailability queries instant availability for a batch of magnets,
	// chunked per the provider's batch ceiling. The returned records have no
	// expiry set; the cache stamps it on merge. Hashes absent from the map
	// are not cached upstream.
	CheckAvailability(ctx context.Context, magnets []Magnet) (map[string]AvailabilityRecord, error)
}

// MagnetResolver is the submit/poll/unrestrict protocol shared by providers
// that require submitting a magnet before links exist.
type MagnetResolver interface {
	// SubmitMagnet adds the magnet to the account and returns the torrent id.
	SubmitMagnet(ctx context.Context, magnet Magnet) (string, error)
	// GetTorrent fetches current torrent state including file listing and
	// resolved links.
	GetTorrent(ctx context.Context, id string) (*Torrent, error)
	// Unrestrict converts a provider-internal link into a final URL.
	Unrestrict(ctx context.Context, link string) (string, error)
	// DeleteTorrent removes a torrent from the account. Used for cleanup.
	DeleteTorrent(ctx context.Context, id string) error
}

// FileSelector is the extra select-files step some providers require between
// submission and processing.
type FileSelector interface {
	SelectFiles(ctx context.Context, torrentID string, fileIDs []string) error
}

// DownloadReuser exposes the account's existing torrents and downloads so a
// resolve can reuse prior work instead of re-submitting.
type DownloadReuser interface {
	GetTorrents(ctx context.Context) ([]*Torrent, error)
	GetDownloads(ctx context.Context) ([]Download, error)
}

// LocalResolver marks providers whose availability records already carry
// final URLs, so resolution is a pure cache lookup.
type LocalResolver interface {
	ResolveLocal(record AvailabilityRecord, fileIndex int) (string, error)
}
