package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"typecho-publish/lib/scrapers/typecho/admin"
	"typecho-publish/lib/scrapers/typecho/core"
	"typecho-publish/lib/transfer"
)

// PublishError reports which pipeline step failed for a document.
type PublishError struct {
	Step string
	Err  error
}

func (e PublishError) Error() string {
	return fmt.Sprintf("publish step %q: %v", e.Step, e.Err)
}

func (e PublishError) Unwrap() error {
	return e.Err
}

type Pipeline struct {
	Session *core.Client
	Admin   admin.Client
	Dial    transfer.DialFunc
	// ImageBase is the public URL prefix assets are reachable under.
	ImageBase string
	// RemoteBase is the FTP directory assets are stored under.
	RemoteBase string
}

// PublishRun tracks how far a single document got so that a failure
// late in the pipeline can undo the earlier steps.
type PublishRun struct {
	Doc       Document
	Content   string
	Assets    []ImageAsset
	ContentID string

	draftCreated   bool
	assetsUploaded bool
}

// Publish pushes one normalized document through submit, content ID
// resolution, asset upload, link rewrite and listing verification.
// Failures after the content exists on the server roll back whatever
// was created.
func (p *Pipeline) Publish(ctx context.Context, doc Document, content string, assets []ImageAsset, categories []int) error {
	ctx, span := tracer.Start(ctx, "publisher.Publish")
	defer span.End()

	if !p.Session.LoggedIn() {
		err := fmt.Errorf("publish %q: %w", doc.Title, core.ErrMissingSessionCookies)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	run := &PublishRun{Doc: doc, Content: content, Assets: assets}

	location, err := p.Admin.PublishPost(ctx, admin.Draft{
		Title:      doc.Title,
		Text:       content,
		Categories: categories,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return PublishError{Step: "submit", Err: err}
	}
	run.draftCreated = true

	cid, err := p.Admin.ResolveContentID(ctx, location, doc.Title)
	if err != nil {
		// the content exists but cannot be addressed, so nothing
		// can be deleted; the operator has to clean it up by hand
		slog.WarnContext(ctx, "content id not resolved, an orphan post may remain",
			"title", doc.Title)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return PublishError{Step: "resolve", Err: err}
	}
	run.ContentID = cid
	slog.InfoContext(ctx, "post created", "title", doc.Title, "cid", cid)

	if err := p.uploadAssets(ctx, run); err != nil {
		p.Rollback(ctx, run)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return PublishError{Step: "upload", Err: err}
	}

	if err := p.rewriteLinks(ctx, run, categories); err != nil {
		// the post and its assets are intact, only the image links
		// still point at placeholders
		slog.WarnContext(ctx, "image link rewrite failed, fix the links manually",
			"title", doc.Title, "cid", cid, "err", err)
	}

	if !p.Admin.VerifyPostListed(ctx, doc.Title) {
		p.Rollback(ctx, run)
		err := fmt.Errorf("post %q not found in the manage listing", doc.Title)
		span.SetStatus(codes.Error, err.Error())
		return PublishError{Step: "verify", Err: err}
	}

	return nil
}

func (p *Pipeline) remoteDir(cid string) string {
	return path.Join(p.RemoteBase, cid)
}

func (p *Pipeline) uploadAssets(ctx context.Context, run *PublishRun) error {
	if len(run.Assets) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "publisher.uploadAssets")
	defer span.End()

	conn, err := p.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial transfer: %w", err)
	}
	defer conn.Quit()

	origin, err := conn.CurrentDir()
	if err != nil {
		return fmt.Errorf("current dir: %w", err)
	}

	dir := p.remoteDir(run.ContentID)
	if err := ensureRemoteDir(conn, dir); err != nil {
		return fmt.Errorf("remote dir %q: %w", dir, err)
	}

	// a single file failing to transfer is not fatal, the verified
	// count against the threshold below decides
	attempted := 0
	for _, asset := range run.Assets {
		attempted++
		f, err := os.Open(asset.StagedPath)
		if err != nil {
			slog.WarnContext(ctx, "cannot open staged asset",
				"path", asset.StagedPath, "err", err)
			continue
		}
		// the remote directory may hold partial uploads from here on
		run.assetsUploaded = true
		err = conn.Store(asset.Filename, f)
		f.Close()
		if err != nil {
			slog.WarnContext(ctx, "store failed",
				"filename", asset.Filename, "err", err)
		}
	}

	// leave the upload directory before verifying the listing
	if err := conn.ChangeDir(origin); err != nil {
		slog.WarnContext(ctx, "cannot restore working directory",
			"dir", origin, "err", err)
	}

	names, err := conn.NameList(dir)
	if err != nil {
		return fmt.Errorf("list %q: %w", dir, err)
	}
	listed := make(map[string]bool, len(names))
	for _, name := range names {
		listed[path.Base(name)] = true
	}
	verified := 0
	for _, asset := range run.Assets {
		if listed[asset.Filename] {
			verified++
		}
	}
	if verified == 0 || float64(verified) < float64(attempted)*0.9 {
		return fmt.Errorf("only %d of %d uploads verified", verified, attempted)
	}
	slog.InfoContext(ctx, "assets uploaded", "cid", run.ContentID, "verified", verified)
	return nil
}

// ensureRemoteDir changes into dir, creating any missing path segment
// along the way. The connection is left with dir as its working
// directory.
func ensureRemoteDir(conn transfer.Client, dir string) error {
	if strings.HasPrefix(dir, "/") {
		if err := conn.ChangeDir("/"); err != nil {
			return err
		}
	}
	for _, segment := range strings.Split(dir, "/") {
		if segment == "" {
			continue
		}
		if err := conn.ChangeDir(segment); err == nil {
			continue
		}
		if err := conn.MakeDir(segment); err != nil {
			return err
		}
		if err := conn.ChangeDir(segment); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) rewriteLinks(ctx context.Context, run *PublishRun, categories []int) error {
	if len(run.Assets) == 0 {
		return nil
	}

	base := strings.TrimRight(p.ImageBase, "/")
	text := run.Content
	for _, asset := range run.Assets {
		url := base + "/" + run.ContentID + "/" + asset.Filename
		text = strings.ReplaceAll(text, asset.Placeholder, url)
	}
	run.Content = text

	return p.Admin.UpdatePost(ctx, admin.Draft{
		CID:        run.ContentID,
		Title:      run.Doc.Title,
		Text:       text,
		Categories: categories,
	})
}

// Rollback undoes a partially published document. Every step is best
// effort: errors are logged and swallowed so that a dead connection
// cannot stop the remaining cleanup, and running it twice is safe.
func (p *Pipeline) Rollback(ctx context.Context, run *PublishRun) {
	ctx, span := tracer.Start(ctx, "publisher.Rollback")
	defer span.End()

	if run.assetsUploaded {
		p.removeRemoteDir(ctx, run)
	}
	if run.draftCreated && run.ContentID != "" {
		if err := p.Admin.DeletePost(ctx, run.ContentID); err != nil {
			slog.WarnContext(ctx, "rollback: delete post failed",
				"cid", run.ContentID, "err", err)
		} else {
			run.draftCreated = false
		}
	}
}

func (p *Pipeline) removeRemoteDir(ctx context.Context, run *PublishRun) {
	conn, err := p.Dial(ctx)
	if err != nil {
		slog.WarnContext(ctx, "rollback: dial transfer failed", "err", err)
		return
	}
	defer conn.Quit()

	dir := p.remoteDir(run.ContentID)
	names, err := conn.NameList(dir)
	if err != nil {
		slog.WarnContext(ctx, "rollback: list remote dir failed", "dir", dir, "err", err)
	}
	for _, name := range names {
		target := path.Join(dir, path.Base(name))
		if err := conn.Delete(target); err != nil {
			slog.WarnContext(ctx, "rollback: delete remote file failed",
				"path", target, "err", err)
		}
	}
	if err := conn.RemoveDir(dir); err != nil {
		slog.WarnContext(ctx, "rollback: remove remote dir failed", "dir", dir, "err", err)
		return
	}
	run.assetsUploaded = false
}
