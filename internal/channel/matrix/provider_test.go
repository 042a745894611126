// ABOUTME: Tests for Matrix ghost id derivation and markdown rendering
// ABOUTME: Network-facing behavior is covered by the channel interface contract

package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/id"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(Config{
		Homeserver:  "https://matrix.example.com",
		UserID:      "@parley:example.com",
		AccessToken: "syt_test",
		Domain:      "example.com",
	})
	require.NoError(t, err)
	return p
}

func TestGhostUserID(t *testing.T) {
	p := newTestProvider(t)

	assert.Equal(t,
		id.UserID("@parley_ana_example_com:example.com"),
		p.ghostUserID("ana_example_com"))
}

func TestGhostUserID_Lowercased(t *testing.T) {
	p := newTestProvider(t)

	// Matrix localparts are lowercase; derived ids may carry uppercase.
	assert.Equal(t,
		id.UserID("@parley_ana_example_com:example.com"),
		p.ghostUserID("Ana_Example_Com"))
}

func TestAliasLocalpart(t *testing.T) {
	p := newTestProvider(t)

	assert.Equal(t, "parley_chat-ana_example_com", p.aliasLocalpart("chat-ana_example_com"))
}

func TestRenderMarkdown(t *testing.T) {
	html := renderMarkdown("**bold** and *italic*")
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, "<em>italic</em>")
}

func TestRenderMarkdown_PlainText(t *testing.T) {
	html := renderMarkdown("just words")
	assert.Equal(t, "<p>just words</p>", html)
}
