package admin

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"typecho-publish/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

// Draft is the content payload for a new post or an update of an
// existing one (CID set).
type Draft struct {
	CID        string
	Title      string
	Text       string
	Categories []int
}

func (c Client) postForm(ctx context.Context, page editPage, referer string, form url.Values) (*resty.Response, error) {
	form.Set("__typecho_csrf_token", page.csrfToken)

	var res *resty.Response
	err := c.Core.WithoutRedirects(func() error {
		c.Core.SetReferer(referer)
		var err error
		res, err = c.Core.Http.R().
			SetContext(ctx).
			SetHeader("Origin", strings.TrimRight(c.Opts.HomeURL, "/")).
			SetFormDataFromValues(form).
			Post(c.actionURL(page.securityToken))
		return err
	})
	return res, err
}

func draftForm(d Draft, timezone, submit string) url.Values {
	form := url.Values{}
	if d.CID != "" {
		form.Set("cid", d.CID)
	}
	form.Set("title", d.Title)
	form.Set("text", d.Text)
	form.Set("markdown", "1")
	form.Set("visibility", "publish")
	form.Set("do", "publish")
	form.Set("timezone", timezone)
	form.Set("submit", submit)
	for _, id := range d.Categories {
		form.Add("category[]", strconv.Itoa(id))
	}
	return form
}

// PublishPost submits a new post through the scraped edit action and
// returns the redirect Location (possibly empty) for ID resolution.
func (c Client) PublishPost(ctx context.Context, draft Draft) (string, error) {
	ctx, span := tracer.Start(ctx, "PublishPost")
	defer span.End()

	page, err := c.fetchEditPage(ctx, c.Opts.WriteURL, c.Opts.AdminURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch write page")
		return "", err
	}
	c.Core.Pace.Sleep(ctx)

	res, err := c.postForm(ctx, page, c.Opts.WriteURL, draftForm(draft, c.Opts.Timezone, "发布"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit post")
		return "", err
	}

	slog.InfoContext(ctx, "submitted post", "title", draft.Title, "status", res.StatusCode())
	return res.Header().Get("Location"), nil
}

// UpdatePost re-submits an existing post's full content.
func (c Client) UpdatePost(ctx context.Context, draft Draft) error {
	ctx, span := tracer.Start(ctx, "UpdatePost")
	defer span.End()

	if draft.CID == "" {
		return fmt.Errorf("update requires a content id")
	}

	page, err := c.fetchEditPage(ctx, c.EditURL(draft.CID), c.Opts.ManagePostsURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch edit page")
		return err
	}
	if !strings.Contains(page.html, draft.Title) {
		err := ScrapeError{Page: "write-post", What: "post title"}
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	c.Core.Pace.Sleep(ctx)

	res, err := c.postForm(ctx, page, c.EditURL(draft.CID), draftForm(draft, c.Opts.Timezone, "保存"))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit update")
		return err
	}
	if res.StatusCode() != 200 && res.StatusCode() != 302 {
		err := fmt.Errorf("update returned status %d", res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// DeletePost removes a post through the edit action, scraping a fresh
// token/CSRF pair from its edit page first.
func (c Client) DeletePost(ctx context.Context, cid string) error {
	ctx, span := tracer.Start(ctx, "DeletePost")
	defer span.End()

	page, err := c.fetchEditPage(ctx, c.EditURL(cid), c.Opts.ManagePostsURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch edit page")
		return err
	}

	form := url.Values{}
	form.Set("cid", cid)
	form.Set("do", "delete")

	res, err := c.postForm(ctx, page, c.EditURL(cid), form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit delete")
		return err
	}
	if res.StatusCode() != 200 && res.StatusCode() != 302 {
		err := fmt.Errorf("delete returned status %d", res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

var (
	archiveIDRegex      = regexp.MustCompile(`/archives/(\d+)/?`)
	cidParamRegex       = regexp.MustCompile(`cid=(\d+)`)
	listingCidRegex     = regexp.MustCompile(`write-post\.php\?cid=(\d+)`)
	listingArchiveRegex = regexp.MustCompile(`/index\.php/archives/(\d+)/`)
)

// ResolveContentID determines the identifier the server assigned to a
// freshly submitted post. Candidates come from the submit redirect
// Location and from the posts listing (the anchor exactly matching the
// title, plus every listed ID); the maximum numeric candidate wins,
// since the listing is ordered by recency and the newest content tends
// to carry the largest ID. This is a heuristic tie-break, not a
// guarantee.
func (c Client) ResolveContentID(ctx context.Context, location, title string) (string, error) {
	ctx, span := tracer.Start(ctx, "ResolveContentID")
	defer span.End()

	var candidates []string
	if location != "" {
		if m := archiveIDRegex.FindStringSubmatch(location); m != nil {
			candidates = append(candidates, m[1])
		}
		if m := cidParamRegex.FindStringSubmatch(location); m != nil {
			candidates = append(candidates, m[1])
		}
	}

	c.Core.Pace.Sleep(ctx)
	res, err := c.Core.Http.R().SetContext(ctx).Get(c.Opts.ManagePostsURL)
	if err != nil {
		span.RecordError(err)
		slog.WarnContext(ctx, "failed to fetch posts listing", "err", err)
	} else {
		html := c.Core.DecodeBody(res)
		candidates = append(candidates, c.listingCandidates(html, title)...)
	}

	best := -1
	for _, candidate := range candidates {
		n, err := strconv.Atoi(candidate)
		if err != nil {
			continue
		}
		best = max(best, n)
	}
	if best < 0 {
		err := ScrapeError{Page: "manage-posts", What: "content id"}
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	id := strconv.Itoa(best)
	slog.InfoContext(ctx, "resolved content id", "cid", id, "candidates", len(candidates))
	return id, nil
}

func (c Client) listingCandidates(html, title string) []string {
	var out []string

	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(html))
	if err == nil {
		for _, anchor := range htmlutil.GetAnchors(doc.Find(`a[href*="write-post.php?cid="]`)) {
			if anchor.Name != title {
				continue
			}
			if m := cidParamRegex.FindStringSubmatch(anchor.Href); m != nil {
				out = append(out, m[1])
			}
		}
	}

	for _, m := range listingCidRegex.FindAllStringSubmatch(html, -1) {
		out = append(out, m[1])
	}
	for _, m := range listingArchiveRegex.FindAllStringSubmatch(html, -1) {
		out = append(out, m[1])
	}
	return out
}

const verifyPageLimit = 4

// VerifyPostListed confirms a title is visible on the posts listing,
// scanning a bounded number of pages.
func (c Client) VerifyPostListed(ctx context.Context, title string) bool {
	ctx, span := tracer.Start(ctx, "VerifyPostListed")
	defer span.End()

	for page := 1; page <= verifyPageLimit; page++ {
		c.Core.Pace.Sleep(ctx)
		res, err := c.Core.Http.R().
			SetContext(ctx).
			SetQueryParam("page", strconv.Itoa(page)).
			Get(c.Opts.ManagePostsURL)
		if err != nil {
			slog.WarnContext(ctx, "failed to check listing page", "page", page, "err", err)
			continue
		}
		if res.StatusCode() != 200 {
			continue
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(c.Core.DecodeBody(res)))
		if err != nil {
			continue
		}
		names := []string{}
		for _, anchor := range htmlutil.GetAnchors(doc.Find("a")) {
			names = append(names, anchor.Name)
		}
		if slices.Contains(names, title) {
			return true
		}
	}

	span.SetStatus(codes.Error, "post not found in listing")
	return false
}
