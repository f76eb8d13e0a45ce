package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cookie fills the enum fields a browser always sets; their JSON decoders
// reject empty values.
func cookie(name, value, domain string, expires float64) *network.Cookie {
	return &network.Cookie{
		Name:         name,
		Value:        value,
		Domain:       domain,
		Path:         "/",
		Expires:      expires,
		Secure:       true,
		SameSite:     network.CookieSameSiteLax,
		Priority:     network.CookiePriorityMedium,
		SourceScheme: network.CookieSourceSchemeSecure,
	}
}

func sessionCookies(expires time.Time) []*network.Cookie {
	exp := float64(expires.Unix())
	return []*network.Cookie{
		cookie("auth_token", "tok", ".x.com", exp),
		cookie("ct0", "csrf", ".x.com", exp+3600),
		cookie("guest_id", "g", ".twitter.com", exp),
		cookie("other", "o", "example.com", exp),
	}
}

func TestCookieStore_SaveLoad(t *testing.T) {
	cs := NewCookieStore(filepath.Join(t.TempDir(), "sub", "cookies.json"))
	expires := time.Now().Add(24 * time.Hour).Truncate(time.Second)

	require.NoError(t, cs.Save(sessionCookies(expires)))

	stored, err := cs.Load()
	require.NoError(t, err)
	assert.Len(t, stored.Cookies, 4)
	assert.True(t, stored.ExpiresAt.Equal(expires), "expiry follows the earliest session cookie")
	assert.True(t, cs.IsValid())

	cookies, err := cs.SessionCookies()
	require.NoError(t, err)
	require.Len(t, cookies, 3)
	for _, c := range cookies {
		assert.NotEqual(t, "example.com", c.Domain)
	}
}

func TestCookieStore_Expired(t *testing.T) {
	cs := NewCookieStore(filepath.Join(t.TempDir(), "cookies.json"))
	require.NoError(t, cs.Save(sessionCookies(time.Now().Add(-time.Hour))))
	assert.False(t, cs.IsValid())
}

func TestCookieStore_IncompleteSession(t *testing.T) {
	cs := NewCookieStore(filepath.Join(t.TempDir(), "cookies.json"))
	exp := float64(time.Now().Add(time.Hour).Unix())
	require.NoError(t, cs.Save([]*network.Cookie{cookie("auth_token", "tok", ".x.com", exp)}))
	assert.False(t, cs.IsValid())
}

func TestCookieStore_Missing(t *testing.T) {
	cs := NewCookieStore(filepath.Join(t.TempDir(), "cookies.json"))

	assert.False(t, cs.IsValid())

	cookies, err := cs.SessionCookies()
	require.NoError(t, err)
	assert.Empty(t, cookies)

	assert.NoError(t, cs.Clear())
}
