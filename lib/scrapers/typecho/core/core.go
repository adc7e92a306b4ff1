// Package core owns the authenticated browser-like session against a
// Typecho deployment. Typecho exposes no API, only server-rendered
// admin HTML, so login is a scraped form handshake and every check is
// against markup or cookies.
package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
	"typecho-publish/lib/pacing"
	"typecho-publish/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

var (
	ErrLoginFormNotFound     = fmt.Errorf("could not find the login form endpoint in the login page")
	ErrMissingSessionCookies = fmt.Errorf("login did not yield the required session cookies")
	ErrAdminCheckFailed      = fmt.Errorf("admin page did not contain any known admin marker")
)

type ClientOptions struct {
	// Domain is the bare site host used for cookie and same-origin
	// checks, e.g. "blog.example.com".
	Domain   string
	HomeURL  string
	LoginURL string
	AdminURL string

	Username     string
	Password     string
	CookiePrefix string

	UserAgent string
}

type Client struct {
	Http *resty.Client
	Pace pacing.Policy

	opts     ClientOptions
	homeURL  *url.URL
	jar      http.CookieJar
	loggedIn bool
}

func NewClient(opts ClientOptions, pace pacing.Policy) (*Client, error) {
	homeURL, err := url.Parse(opts.HomeURL)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	// self-hosted targets frequently present self-signed certificates
	client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})

	client.SetHeaders(map[string]string{
		"User-Agent":                opts.UserAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
		"Accept-Language":           "zh-CN,zh;q=0.9,en;q=0.8,en-GB;q=0.7,en-US;q=0.6",
		"Accept-Encoding":           "gzip, deflate, br",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Ch-Ua":                 `"Chromium";v="128", "Not;A=Brand";v="24", "Google Chrome";v="128"`,
		"Sec-Ch-Ua-Mobile":          "?0",
		"Sec-Ch-Ua-Platform":        `"Windows"`,
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Priority":                  "u=0, i",
		"Cache-Control":             "max-age=0",
	})
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(homeURL.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/typecho/http")

	return &Client{
		Http:    client,
		Pace:    pace,
		opts:    opts,
		homeURL: homeURL,
		jar:     jar,
	}, nil
}

func (c *Client) Options() ClientOptions {
	return c.opts
}

func (c *Client) LoggedIn() bool {
	return c.loggedIn
}

// SetReferer records the previous step's URL as the Referer and keeps
// the Sec-Fetch-Site hint consistent with it, which is the minimum
// browser-like signal the server is known to check.
func (c *Client) SetReferer(referer string) {
	c.Http.SetHeader("Referer", referer)

	if referer == "" {
		c.Http.SetHeader("Sec-Fetch-Site", "none")
		return
	}
	parsed, err := url.Parse(referer)
	if err != nil || parsed.Hostname() != c.opts.Domain {
		c.Http.SetHeader("Sec-Fetch-Site", "cross-site")
		return
	}
	c.Http.SetHeader("Sec-Fetch-Site", "same-origin")
}

// WithoutRedirects runs fn with automatic redirects disabled so the
// caller can observe Location headers, then restores the default
// policy.
func (c *Client) WithoutRedirects(fn func() error) error {
	c.Http.SetRedirectPolicy(resty.RedirectPolicyFunc(
		func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	))
	defer c.Http.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(c.homeURL.Hostname()))

	return fn()
}

func (c *Client) hasCookie(name string) bool {
	for _, cookie := range c.jar.Cookies(c.homeURL) {
		if cookie.Name == name && cookie.Value != "" {
			return true
		}
	}
	return false
}

// Close releases the session. Publish operations are rejected once the
// session is released.
func (c *Client) Close() {
	c.loggedIn = false
	c.Http.GetClient().CloseIdleConnections()
}
