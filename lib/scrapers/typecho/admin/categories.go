package admin

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"typecho-publish/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

type Category struct {
	ID   int
	Name string
}

const defaultCategoryName = "默认分类"

func (c Client) defaultCategories() []Category {
	slog.Warn(
		"falling back to default category",
		"id", c.Opts.DefaultCategoryID, "name", defaultCategoryName,
	)
	return []Category{{ID: c.Opts.DefaultCategoryID, Name: defaultCategoryName}}
}

// DiscoverCategories scrapes the publish categories from the category
// management page. Discovery is advisory: any failure falls back to the
// single configured default entry, it never fails the pipeline.
func (c Client) DiscoverCategories(ctx context.Context) []Category {
	ctx, span := tracer.Start(ctx, "DiscoverCategories")
	defer span.End()

	c.Core.SetReferer(c.Opts.AdminURL)
	c.Core.Pace.Sleep(ctx)

	res, err := c.Core.Http.R().SetContext(ctx).Get(c.Opts.ManageCategoriesURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch category page")
		return c.defaultCategories()
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "category page returned non-200")
		return c.defaultCategories()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(c.Core.DecodeBody(res)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse category page html")
		return c.defaultCategories()
	}

	var categories []Category
	seen := map[int]bool{}
	for _, anchor := range htmlutil.GetAnchors(doc.Find(`a[href*="category.php?mid="]`)) {
		href, err := url.Parse(anchor.Href)
		if err != nil {
			continue
		}
		mid, err := strconv.Atoi(href.Query().Get("mid"))
		if err != nil || seen[mid] || anchor.Name == "" {
			continue
		}
		seen[mid] = true
		categories = append(categories, Category{ID: mid, Name: anchor.Name})
	}

	if len(categories) == 0 {
		span.SetStatus(codes.Error, ScrapeError{Page: "manage-categories", What: "category anchors"}.Error())
		return c.defaultCategories()
	}

	slog.InfoContext(ctx, "discovered categories", "count", len(categories))
	return categories
}
