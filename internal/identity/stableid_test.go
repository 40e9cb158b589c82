package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateDeterministic(t *testing.T) {
	a := Generate("some chapter text", 3, "Chapter 3")
	b := Generate("some chapter text", 3, "Chapter 3")
	assert.Equal(t, a, b)

	assert.True(t, strings.HasPrefix(a, "ch3_"))
	assert.Len(t, a, len("ch3_")+12)
}

func TestGenerateDependsOnInputs(t *testing.T) {
	base := Generate("content", 1, "title")

	assert.NotEqual(t, base, Generate("other content", 1, "title"))
	assert.NotEqual(t, base, Generate("content", 2, "title"))
	assert.NotEqual(t, base, Generate("content", 1, "other title"))
}

func TestGenerateTitleNormalization(t *testing.T) {
	// cosmetic retitling must not change the identity
	a := Generate("content", 1, "Chapter  1 ")
	b := Generate("content", 1, "chapter 1")
	assert.Equal(t, a, b)

	// combining marks are stripped
	assert.Equal(t,
		Generate("content", 1, "Café"),
		Generate("content", 1, "Cafe"))
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "chapter 1", NormalizeTitle("  Chapter   1  "))
	assert.Equal(t, "cafe au lait", NormalizeTitle("Café au Lait"))
	assert.Equal(t, "", NormalizeTitle("   "))
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "ch12_3f8a9b0c1d2e", Canonicalize("ch12-3f8a9b0c1d2e"))
	assert.Equal(t, "ch12_3f8a9b0c1d2e", Canonicalize("ch12_3f8a9b0c1d2e"))
	// an id carrying both separators is ambiguous and passes through
	assert.Equal(t, "ch12_3f8a-9b0c", Canonicalize("ch12_3f8a-9b0c"))
}

func TestAlternateForm(t *testing.T) {
	assert.Equal(t, "ch12-abc123def456", AlternateForm("ch12_abc123def456"))
	assert.Equal(t, "ch12_abc123def456", AlternateForm("ch12-abc123def456"))
	assert.Equal(t, "", AlternateForm("ch12abc"))
}

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"HTTP://Example.COM/novel/ch-1", "http://example.com/novel/ch-1"},
		{"https://example.com:443/ch/2", "https://example.com/ch/2"},
		{"http://example.com:80/ch/2", "http://example.com/ch/2"},
		{"https://example.com/ch/2/", "https://example.com/ch/2"},
		{"https://example.com/ch/2#section-4", "https://example.com/ch/2"},
		{"https://example.com/ch/2?utm_source=tw&utm_medium=social", "https://example.com/ch/2"},
		{"https://example.com/ch/2?page=3&ref=feed", "https://example.com/ch/2?page=3"},
		{"example.com/ch/2/", "example.com/ch/2"},
		{"  https://example.com/ch/2  ", "https://example.com/ch/2"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanonicalURL(c.in), "input %q", c.in)
	}
}
