package publisher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"typecho-publish/lib/pacing"
)

// BatchResult summarizes a batch run.
type BatchResult struct {
	Attempted  int
	Succeeded  int
	Failed     int
	FailedDocs []string
}

type Batch struct {
	Pipeline  *Pipeline
	Relocator Relocator
	Pace      pacing.Policy
	// BatchDelay is the pause between consecutive documents.
	BatchDelay time.Duration
}

// Run publishes every document in paths. One document failing does not
// stop the rest; failures are collected in the result. The session is
// closed when the batch finishes.
func (b Batch) Run(ctx context.Context, paths []string, categories []int) BatchResult {
	ctx, span := tracer.Start(ctx, "publisher.Batch")
	defer span.End()

	defer b.Pipeline.Session.Close()

	var result BatchResult
	for i, p := range paths {
		if i > 0 {
			b.Pace.SleepRange(ctx, b.BatchDelay, b.BatchDelay)
		}
		result.Attempted++
		if err := b.publishOne(ctx, p, categories); err != nil {
			slog.ErrorContext(ctx, "publish failed", "file", filepath.Base(p), "err", err)
			result.Failed++
			result.FailedDocs = append(result.FailedDocs, filepath.Base(p))
			continue
		}
		result.Succeeded++
	}
	return result
}

func (b Batch) publishOne(ctx context.Context, path string, categories []int) error {
	doc, err := LoadDocument(path, b.Relocator.SpaceChar)
	if err != nil {
		return err
	}
	// staging is scratch space, remove it whether or not publishing
	// succeeded
	defer b.Relocator.Cleanup(doc)

	content, assets, err := b.Relocator.Relocate(doc)
	if err != nil {
		return err
	}
	content = Normalize(content)

	return b.Pipeline.Publish(ctx, doc, content, assets, categories)
}
