// Package identity generates and resolves the content-derived stable IDs
// that the rest of the engine uses to address chapters across URL changes,
// ID-format changes, and partial data loss.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Separator history. Canonical IDs look like "ch12_3f8a9b0c1d2e"; releases
// before 0.6 emitted "ch12-3f8a9b0c1d2e". Both must keep resolving.
const (
	CanonicalSep = "_"
	LegacySep    = "-"
	hashLen      = 12
)

// Generate derives the stable ID for a chapter. Same
// (content, chapterNumber, title) always yields the same ID: it is a content
// hash, not a random UUID, so re-importing a lost library reproduces the
// identical identities.
func Generate(content string, chapterNumber int, title string) string {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(chapterNumber)))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeTitle(title)))
	sum := hex.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("ch%d%s%s", chapterNumber, CanonicalSep, sum[:hashLen])
}

// Canonicalize rewrites a legacy-separator ID into canonical form. IDs
// already canonical (or unrecognized) pass through unchanged.
func Canonicalize(id string) string {
	if strings.Contains(id, LegacySep) && !strings.Contains(id, CanonicalSep) {
		return strings.ReplaceAll(id, LegacySep, CanonicalSep)
	}
	return id
}

// AlternateForm returns the other-separator variant of an ID, for the
// format-drift fallbacks in the resolver. Returns "" when there is no
// distinct variant.
func AlternateForm(id string) string {
	switch {
	case strings.Contains(id, CanonicalSep):
		return strings.ReplaceAll(id, CanonicalSep, LegacySep)
	case strings.Contains(id, LegacySep):
		return strings.ReplaceAll(id, LegacySep, CanonicalSep)
	}
	return ""
}

// NormalizeTitle folds a chapter title to a stable form before hashing:
// NFD decomposition, combining marks stripped, lowercased, whitespace
// collapsed. Keeps the hash stable across cosmetic retitling ("Chapter 1 " vs
// "chapter 1").
func NormalizeTitle(title string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	s, _, err := transform.String(t, title)
	if err != nil {
		s = title
	}
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// CanonicalURL normalizes a raw chapter URL for use as the identity-mapping
// key: scheme and host lowercased, default ports, fragments, trailing
// slashes, and common tracking query parameters dropped.
func CanonicalURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	// fragment never identifies a chapter
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}

	scheme := ""
	rest := s
	if i := strings.Index(s, "://"); i >= 0 {
		scheme = strings.ToLower(s[:i])
		rest = s[i+3:]
	}

	host := rest
	path := ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		host = rest[:i]
		path = rest[i:]
	}
	host = strings.ToLower(host)
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ":443")

	if q := strings.IndexByte(path, '?'); q >= 0 {
		path = path[:q] + canonicalQuery(path[q+1:])
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	if scheme == "" {
		return host + path
	}
	return scheme + "://" + host + path
}

// canonicalQuery drops tracking parameters and re-serializes the rest in the
// original order. Returns "" or "?..." ready to append.
func canonicalQuery(query string) string {
	var kept []string
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		key := part
		if i := strings.IndexByte(part, '='); i >= 0 {
			key = part[:i]
		}
		switch strings.ToLower(key) {
		case "utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "ref", "fbclid":
			continue
		}
		kept = append(kept, part)
	}
	if len(kept) == 0 {
		return ""
	}
	return "?" + strings.Join(kept, "&")
}
