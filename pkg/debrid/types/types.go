package types

import (
	"time"

	"github.com/bdashore3/Ferrite/internal/utils"
)

// Provider identifies a debrid service.
type Provider string

const (
	ProviderRealDebrid Provider = "realdebrid"
	ProviderAllDebrid  Provider = "alldebrid"
	ProviderPremiumize Provider = "premiumize"
)

// Magnet is the provider-agnostic identity of a torrent: a lowercase hex
// infohash plus the full magnet URI.
type Magnet struct {
	Hash string `json:"hash"`
	Link string `json:"link"`
}

// SearchResult is what the (out-of-scope) source-search subsystem hands us.
type SearchResult struct {
	Title      string `json:"title"`
	MagnetHash string `json:"magnet_hash,omitempty"`
	MagnetLink string `json:"magnet_link,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Seeders    int    `json:"seeders,omitempty"`
	Leechers   int    `json:"leechers,omitempty"`
}

// Magnet derives the magnet identity for a result. Either field may be
// missing; the hash is recovered from the link (or vice versa) when possible.
func (r SearchResult) Magnet() (Magnet, bool) {
	hash := r.MagnetHash
	link := r.MagnetLink
	if hash == "" && link != "" {
		h, _, err := utils.ParseMagnet(link)
		if err != nil {
			return Magnet{}, false
		}
		hash = h
	}
	if hash == "" {
		return Magnet{}, false
	}
	normalized, err := utils.NormalizeInfoHash(hash)
	if err != nil {
		return Magnet{}, false
	}
	if link == "" {
		link = utils.BuildMagnetLink(normalized, r.Title)
	}
	return Magnet{Hash: normalized, Link: link}, true
}

// MatchStatus is the normalized availability of one result on one provider.
type MatchStatus int

const (
	MatchNone MatchStatus = iota
	MatchPartiallyCached
	MatchFullyCached
)

func (s MatchStatus) String() string {
	switch s {
	case MatchPartiallyCached:
		return "partial"
	case MatchFullyCached:
		return "full"
	default:
		return "none"
	}
}

// AvailabilityFile is one selectable file inside a cached torrent.
type AvailabilityFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	// Link is provider specific: an internal link for RealDebrid, a locked
	// link for AllDebrid, a direct stream URL for Premiumize.
	Link string `json:"link,omitempty"`
}

// AvailabilityRecord is the cached availability of one hash on one provider.
// Records are replaced whole, never partially updated.
type AvailabilityRecord struct {
	Provider Provider           `json:"provider"`
	Hash     string             `json:"hash"`
	Files    []AvailabilityFile `json:"files,omitempty"`
	Expiry   time.Time          `json:"expiry"`
}

func (r AvailabilityRecord) Expired(now time.Time) bool {
	return now.After(r.Expiry)
}

// Status maps the file listing onto the match enum: more than one selectable
// file means the user still has to pick, so the result is partial.
func (r AvailabilityRecord) Status() MatchStatus {
	if len(r.Files) > 1 {
		return MatchPartiallyCached
	}
	return MatchFullyCached
}

// Selection scopes one resolve attempt: which file/batch index the user picked.
// A negative index means "no explicit pick".
type Selection struct {
	FileIndex int `json:"file_index"`
}

// Origin of a resolved download.
type Origin string

const (
	OriginReusedExisting   Origin = "reused_existing"
	OriginFreshlySubmitted Origin = "freshly_submitted"
)

// ResolvedDownload is the terminal value of a resolve attempt.
type ResolvedDownload struct {
	URL    string `json:"url"`
	Origin Origin `json:"origin"`
}

// Torrent is a torrent that lives on a provider's account.
type Torrent struct {
	ID       string
	Hash     string
	Name     string
	Status   string
	Progress float64
	Links    []string
	Files    []AvailabilityFile
}

// Download is an entry in a provider's "my downloads" list: an already
// unrestricted link that can be reused verbatim.
type Download struct {
	ID       string
	Filename string
	Link     string // the original restricted link
	URL      string // the unrestricted download URL
}

// Severity classifies UI status messages.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

// StatusSink receives user-facing status messages. Implementations must not
// block; the core calls Report and moves on.
type StatusSink interface {
	Report(message string, severity Severity)
}

// NopSink discards all messages.
type NopSink struct{}

func (NopSink) Report(string, Severity) {}

// CredentialStore is the external secure storage for provider tokens. The
// core imposes no schema beyond provider identity.
type CredentialStore interface {
	Get(provider Provider) (string, error)
	Set(provider Provider, token string) error
	Clear(provider Provider) error
}
