package core

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"typecho-publish/lib/pacing"
	"typecho-publish/lib/telemetry"

	"github.com/stretchr/testify/require"
)

type fakeSite struct {
	withLoginForm  bool
	setCookies     []string
	withMarker     bool
	loginFormCalls int
}

func (f *fakeSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>home</body></html>")
	})
	mux.HandleFunc("/admin/login.php", func(w http.ResponseWriter, r *http.Request) {
		if !f.withLoginForm {
			fmt.Fprint(w, "<html><body>nothing here</body></html>")
			return
		}
		fmt.Fprint(w, `<html><body>
			<form method="post" action="/index.php/action/login?_=00112233445566778899aabbccddeeff">
				<input type="text" name="name"><input type="password" name="password">
			</form>
		</body></html>`)
	})
	mux.HandleFunc("/index.php/action/login", func(w http.ResponseWriter, r *http.Request) {
		f.loginFormCalls++
		for _, name := range f.setCookies {
			http.SetCookie(w, &http.Cookie{Name: name, Value: "x", Path: "/"})
		}
		http.Redirect(w, r, "/admin/", http.StatusFound)
	})
	mux.HandleFunc("/admin/", func(w http.ResponseWriter, r *http.Request) {
		if f.withMarker {
			fmt.Fprint(w, "<html><body>网站概要</body></html>")
			return
		}
		fmt.Fprint(w, "<html><body>please login</body></html>")
	})
	return mux
}

func newTestClient(t *testing.T, site *fakeSite) *Client {
	server := httptest.NewServer(site.handler())
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	client, err := NewClient(ClientOptions{
		Domain:       u.Hostname(),
		HomeURL:      server.URL,
		LoginURL:     server.URL + "/admin/login.php",
		AdminURL:     server.URL + "/admin/",
		Username:     "admin",
		Password:     "hunter2",
		CookiePrefix: "a1b2c3",
		UserAgent:    "test-agent",
	}, pacing.None{})
	require.NoError(t, err)
	return client
}

func TestLogin(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:typecho-core")
	defer cleanup()

	site := &fakeSite{
		withLoginForm: true,
		setCookies:    []string{"a1b2c3__typecho_authCode", "a1b2c3__typecho_uid", "PHPSESSID"},
		withMarker:    true,
	}
	client := newTestClient(t, site)

	require.False(t, client.LoggedIn())
	err := client.Login(context.Background())
	require.NoError(t, err)
	require.True(t, client.LoggedIn())
	require.Equal(t, 1, site.loginFormCalls)

	client.Close()
	require.False(t, client.LoggedIn())
}

func TestLoginFormNotFound(t *testing.T) {
	site := &fakeSite{withLoginForm: false}
	client := newTestClient(t, site)

	err := client.Login(context.Background())
	require.ErrorIs(t, err, ErrLoginFormNotFound)
}

func TestLoginMissingCookies(t *testing.T) {
	site := &fakeSite{
		withLoginForm: true,
		setCookies:    []string{"a1b2c3__typecho_authCode", "PHPSESSID"},
		withMarker:    true,
	}
	client := newTestClient(t, site)

	err := client.Login(context.Background())
	require.ErrorIs(t, err, ErrMissingSessionCookies)
}

func TestLoginAdminCheckFailed(t *testing.T) {
	site := &fakeSite{
		withLoginForm: true,
		setCookies:    []string{"a1b2c3__typecho_authCode", "a1b2c3__typecho_uid", "PHPSESSID"},
		withMarker:    false,
	}
	client := newTestClient(t, site)

	err := client.Login(context.Background())
	require.ErrorIs(t, err, ErrAdminCheckFailed)
}

func TestSetRefererSecFetchSite(t *testing.T) {
	site := &fakeSite{}
	client := newTestClient(t, site)
	domain := client.Options().Domain

	client.SetReferer("")
	require.Equal(t, "none", client.Http.Header.Get("Sec-Fetch-Site"))

	client.SetReferer("http://" + domain + "/admin/")
	require.Equal(t, "same-origin", client.Http.Header.Get("Sec-Fetch-Site"))

	client.SetReferer("https://othersite.example.com/")
	require.Equal(t, "cross-site", client.Http.Header.Get("Sec-Fetch-Site"))
}
