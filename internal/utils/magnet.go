package utils

import (
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

var hexHashRegex = regexp.MustCompile("^[0-9a-fA-F]{40}$")

// ParseMagnet extracts the infohash and display name from a magnet URI.
// The returned hash is lowercase hex regardless of how the URI encoded it.
func ParseMagnet(link string) (hash string, name string, err error) {
	if link == "" {
		return "", "", fmt.Errorf("empty magnet link")
	}
	m, err := metainfo.ParseMagnetUri(link)
	if err == nil {
		return strings.ToLower(m.InfoHash.HexString()), m.DisplayName, nil
	}
	// anacrolix rejects base32 infohashes, fall back to manual extraction
	raw := extractInfoHash(link)
	if raw == "" {
		return "", "", fmt.Errorf("parsing magnet link: %w", err)
	}
	hash, err = NormalizeInfoHash(raw)
	if err != nil {
		return "", "", err
	}
	return hash, "", nil
}

// NormalizeInfoHash converts a 40-char hex or 32-char base32 infohash to
// lowercase hex.
func NormalizeInfoHash(input string) (string, error) {
	if hexHashRegex.MatchString(input) {
		return strings.ToLower(input), nil
	}

	if len(input) == 32 {
		upper := strings.ToUpper(strings.TrimRight(input, "="))
		decoded, err := base32.StdEncoding.DecodeString(upper)
		if err == nil && len(decoded) == 20 {
			return hex.EncodeToString(decoded), nil
		}
	}

	return "", fmt.Errorf("invalid infohash: %s", input)
}

// BuildMagnetLink constructs a minimal magnet URI for a bare infohash.
func BuildMagnetLink(hash, name string) string {
	link := fmt.Sprintf("magnet:?xt=urn:btih:%s", hash)
	if name != "" {
		link += "&dn=" + strings.ReplaceAll(name, " ", "+")
	}
	return link
}

func extractInfoHash(magnetDesc string) string {
	const prefix = "xt=urn:btih:"
	start := strings.Index(magnetDesc, prefix)
	if start == -1 {
		return ""
	}
	start += len(prefix)
	end := strings.IndexAny(magnetDesc[start:], "&#")
	if end == -1 {
		return magnetDesc[start:]
	}
	return magnetDesc[start : start+end]
}
