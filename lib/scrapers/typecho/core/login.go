package core

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/typecho/core")

// markers that only render on the authenticated admin dashboard.
var adminMarkers = []string{"网站概要", "管理面板", "文章管理", "退出登录", "Typecho"}

// selectors for the login form's submission endpoint, tried in priority
// order. The first targets Typecho's tokened login action, the last is
// a catch-all for themed login pages.
var loginFormSelectors = []string{
	`form[action*="index.php/action/login"]`,
	`form[action*="/action/login"]`,
	`form[action]`,
}

func (c *Client) resolveLoginAction(doc *goquery.Document) (string, error) {
	for _, selector := range loginFormSelectors {
		action := doc.Find(selector).First().AttrOr("action", "")
		if action == "" {
			continue
		}
		if strings.HasPrefix(action, "http") {
			return action, nil
		}
		base, err := url.Parse(c.opts.LoginURL)
		if err != nil {
			return "", err
		}
		ref, err := url.Parse(action)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String(), nil
	}
	return "", ErrLoginFormNotFound
}

// Login performs the browser-like login handshake: home page, login
// page, credential post, session cookie check, admin page check. Each
// network call is preceded by a randomized pacing delay.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	c.SetReferer("")
	c.Pace.Sleep(ctx)

	// best-effort warm-up, a failure here is logged but not fatal
	res, err := c.Http.R().SetContext(ctx).Get(c.opts.HomeURL)
	if err != nil {
		slog.WarnContext(ctx, "home page warm-up failed", "err", err)
	} else {
		slog.DebugContext(ctx, "home page fetched", "status", res.StatusCode())
	}
	c.Pace.SleepRange(ctx, 1500*time.Millisecond, 2500*time.Millisecond)

	c.SetReferer(c.opts.HomeURL)
	res, err = c.Http.R().SetContext(ctx).Get(c.opts.LoginURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(c.DecodeBody(res)))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page html")
		return err
	}

	loginAction, err := c.resolveLoginAction(doc)
	if err != nil {
		span.SetStatus(codes.Error, "failed to find login form")
		return err
	}
	slog.InfoContext(ctx, "found login endpoint", "url", loginAction)
	c.Pace.SleepRange(ctx, 2000*time.Millisecond, 3000*time.Millisecond)

	c.SetReferer(c.opts.LoginURL)
	_, err = c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"name":     c.opts.Username,
			"password": c.opts.Password,
			"referer":  c.opts.AdminURL,
			"login":    "登录",
		}).
		Post(loginAction)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit credentials")
		return err
	}

	authOk := c.hasCookie(c.opts.CookiePrefix + "__typecho_authCode")
	uidOk := c.hasCookie(c.opts.CookiePrefix + "__typecho_uid")
	sessionOk := c.hasCookie("PHPSESSID")
	slog.InfoContext(
		ctx, "session cookie check",
		"auth_code", authOk, "uid", uidOk, "phpsessid", sessionOk,
	)
	if !authOk || !uidOk || !sessionOk {
		span.SetStatus(codes.Error, ErrMissingSessionCookies.Error())
		return ErrMissingSessionCookies
	}
	c.Pace.SleepRange(ctx, 1000*time.Millisecond, 2000*time.Millisecond)

	c.SetReferer(c.opts.LoginURL)
	var adminHtml string
	err = c.WithoutRedirects(func() error {
		res, err := c.Http.R().SetContext(ctx).Get(c.opts.AdminURL)
		if err != nil {
			return err
		}
		adminHtml = c.DecodeBody(res)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch admin page")
		return err
	}

	marker := matchAdminMarker(adminHtml)
	if marker == "" {
		span.SetStatus(codes.Error, ErrAdminCheckFailed.Error())
		return ErrAdminCheckFailed
	}
	slog.InfoContext(ctx, "admin check passed", "marker", marker)

	c.loggedIn = true
	return nil
}

func matchAdminMarker(adminHtml string) string {
	for _, marker := range adminMarkers {
		if strings.Contains(adminHtml, marker) {
			return marker
		}
	}
	return ""
}
