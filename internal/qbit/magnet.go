package qbit

import (
	"net/url"
	"strings"
)

// MagnetHash extracts the btih info hash from a magnet link, lowercased.
// Returns false for anything that isn't a magnet link with a v1 info hash.
func MagnetHash(magnet string) (string, bool) {
	u, err := url.Parse(magnet)
	if err != nil || u.Scheme != "magnet" {
		return "", false
	}
	for _, xt := range u.Query()["xt"] {
		if rest, ok := strings.CutPrefix(xt, "urn:btih:"); ok && rest != "" {
			return strings.ToLower(rest), true
		}
	}
	return "", false
}
