package admin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"typecho-publish/lib/pacing"
	"typecho-publish/lib/scrapers/typecho/core"
	"typecho-publish/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const testSecurityToken = "ffeeddccbbaa99887766554433221100"

type fakeAdmin struct {
	categoriesStatus int
	categoriesHtml   string
	editTitle        string
	listingPages     map[int]string

	editActions []url.Values
}

func (f *fakeAdmin) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/manage-categories.php", func(w http.ResponseWriter, r *http.Request) {
		if f.categoriesStatus != 0 {
			w.WriteHeader(f.categoriesStatus)
			return
		}
		fmt.Fprint(w, f.categoriesHtml)
	})
	mux.HandleFunc("/admin/write-post.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<h2>%s</h2>
			<form action="/index.php/action/contents-post-edit?_=%s" method="post">
				<input type="hidden" name="__typecho_csrf_token" value="csrf-xyz">
			</form>
		</body></html>`, f.editTitle, testSecurityToken)
	})
	mux.HandleFunc("/index.php/action/contents-post-edit", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form := r.PostForm
		form.Set("_", r.URL.Query().Get("_"))
		f.editActions = append(f.editActions, form)
		w.Header().Set("Location", "/admin/write-post.php?cid=42")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/admin/manage-posts.php", func(w http.ResponseWriter, r *http.Request) {
		page := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		fmt.Fprint(w, f.listingPages[page])
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeAdmin) Client {
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	session, err := core.NewClient(core.ClientOptions{
		Domain:    u.Hostname(),
		HomeURL:   server.URL,
		LoginURL:  server.URL + "/admin/login.php",
		AdminURL:  server.URL + "/admin/",
		UserAgent: "test-agent",
	}, pacing.None{})
	require.NoError(t, err)

	return NewClient(session, Options{
		HomeURL:             server.URL,
		AdminURL:            server.URL + "/admin/",
		WriteURL:            server.URL + "/admin/write-post.php",
		ManagePostsURL:      server.URL + "/admin/manage-posts.php",
		ManageCategoriesURL: server.URL + "/admin/manage-categories.php",
		Timezone:            "28800",
		DefaultCategoryID:   1,
	})
}

func TestDiscoverCategories(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:typecho-admin")
	defer cleanup()

	fake := &fakeAdmin{
		categoriesHtml: `<html><body>
			<a href="/admin/category.php?mid=3">笔记</a>
			<a href="/admin/category.php?mid=7">随笔</a>
			<a href="/admin/category.php?mid=3">笔记</a>
			<a href="/admin/other.php">other</a>
		</body></html>`,
	}
	client := newTestClient(t, fake)

	categories := client.DiscoverCategories(context.Background())
	require.Equal(t, []Category{
		{ID: 3, Name: "笔记"},
		{ID: 7, Name: "随笔"},
	}, categories)
}

func TestDiscoverCategoriesFallback(t *testing.T) {
	fake := &fakeAdmin{categoriesStatus: http.StatusInternalServerError}
	client := newTestClient(t, fake)

	categories := client.DiscoverCategories(context.Background())
	require.Equal(t, []Category{{ID: 1, Name: "默认分类"}}, categories)
}

func TestDiscoverCategoriesEmptyFallback(t *testing.T) {
	fake := &fakeAdmin{categoriesHtml: "<html><body>no anchors</body></html>"}
	client := newTestClient(t, fake)

	categories := client.DiscoverCategories(context.Background())
	require.Equal(t, []Category{{ID: 1, Name: "默认分类"}}, categories)
}

func TestPublishPost(t *testing.T) {
	fake := &fakeAdmin{editTitle: "note"}
	client := newTestClient(t, fake)

	location, err := client.PublishPost(context.Background(), Draft{
		Title:      "note",
		Text:       "hello",
		Categories: []int{3, 7},
	})
	require.NoError(t, err)
	require.Equal(t, "/admin/write-post.php?cid=42", location)

	require.Len(t, fake.editActions, 1)
	form := fake.editActions[0]
	require.Equal(t, testSecurityToken, form.Get("_"))
	require.Equal(t, "csrf-xyz", form.Get("__typecho_csrf_token"))
	require.Equal(t, "note", form.Get("title"))
	require.Equal(t, "hello", form.Get("text"))
	require.Equal(t, "1", form.Get("markdown"))
	require.Equal(t, "publish", form.Get("do"))
	require.Equal(t, "发布", form.Get("submit"))
	require.Equal(t, []string{"3", "7"}, form["category[]"])
}

func TestUpdatePost(t *testing.T) {
	fake := &fakeAdmin{editTitle: "note"}
	client := newTestClient(t, fake)

	err := client.UpdatePost(context.Background(), Draft{
		CID:   "42",
		Title: "note",
		Text:  "updated",
	})
	require.NoError(t, err)

	require.Len(t, fake.editActions, 1)
	form := fake.editActions[0]
	require.Equal(t, "42", form.Get("cid"))
	require.Equal(t, "保存", form.Get("submit"))
}

func TestUpdatePostTitleMissing(t *testing.T) {
	fake := &fakeAdmin{editTitle: "something else"}
	client := newTestClient(t, fake)

	err := client.UpdatePost(context.Background(), Draft{
		CID:   "42",
		Title: "note",
		Text:  "updated",
	})
	require.ErrorAs(t, err, &ScrapeError{})
}

func TestDeletePost(t *testing.T) {
	fake := &fakeAdmin{editTitle: "note"}
	client := newTestClient(t, fake)

	err := client.DeletePost(context.Background(), "42")
	require.NoError(t, err)

	require.Len(t, fake.editActions, 1)
	form := fake.editActions[0]
	require.Equal(t, "42", form.Get("cid"))
	require.Equal(t, "delete", form.Get("do"))
}

func TestResolveContentIDMax(t *testing.T) {
	fake := &fakeAdmin{
		listingPages: map[int]string{
			1: `<html><body>
				<a href="/admin/write-post.php?cid=12">note</a>
				<a href="/admin/write-post.php?cid=5">older</a>
				<a href="/index.php/archives/100/">view</a>
			</body></html>`,
		},
	}
	client := newTestClient(t, fake)

	id, err := client.ResolveContentID(context.Background(), "", "note")
	require.NoError(t, err)
	require.Equal(t, "100", id)
}

func TestResolveContentIDFromLocation(t *testing.T) {
	fake := &fakeAdmin{listingPages: map[int]string{1: "<html><body></body></html>"}}
	client := newTestClient(t, fake)

	id, err := client.ResolveContentID(
		context.Background(),
		"/index.php/archives/41/?cid=42",
		"note",
	)
	require.NoError(t, err)
	require.Equal(t, "42", id)
}

func TestResolveContentIDNoCandidates(t *testing.T) {
	fake := &fakeAdmin{listingPages: map[int]string{1: "<html><body></body></html>"}}
	client := newTestClient(t, fake)

	_, err := client.ResolveContentID(context.Background(), "", "note")
	require.ErrorAs(t, err, &ScrapeError{})
}

func TestVerifyPostListed(t *testing.T) {
	fake := &fakeAdmin{
		listingPages: map[int]string{
			1: `<html><body><a href="#">other</a></body></html>`,
			2: `<html><body><a href="/admin/write-post.php?cid=42">note</a></body></html>`,
		},
	}
	client := newTestClient(t, fake)

	require.True(t, client.VerifyPostListed(context.Background(), "note"))
	require.False(t, client.VerifyPostListed(context.Background(), "missing"))
}
