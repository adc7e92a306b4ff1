package publisher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"typecho-publish/lib/pacing"
)

func TestBatchRun(t *testing.T) {
	fake := &fakeTypecho{cid: "42"}
	conn := newFakeTransfer()
	p := newTestPipeline(t, fake, conn)
	require.NoError(t, p.Session.Login(context.Background()))

	docs := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(docs, "good.md"), []byte("# good\n![a](pic.png)\n"), 0644))
	require.NoError(t, os.WriteFile(
		filepath.Join(docs, "pic.png"), []byte("img"), 0644))
	require.NoError(t, os.WriteFile(
		filepath.Join(docs, "bad.md"), []byte("![a](missing.png)\n"), 0644))

	staging := t.TempDir()
	b := Batch{
		Pipeline:  p,
		Relocator: Relocator{StagingRoot: staging, SpaceChar: "-", Now: fixedClock},
		Pace:      pacing.None{},
	}

	paths, err := ListDocuments(docs)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(docs, "bad.md"),
		filepath.Join(docs, "good.md"),
	}, paths)

	result := b.Run(context.Background(), paths, []int{1})

	require.Equal(t, 2, result.Attempted)
	require.Equal(t, 1, result.Succeeded)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, []string{"bad.md"}, result.FailedDocs)

	// staging directories are scratch space, both are gone afterwards
	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	require.Empty(t, entries)

	// the batch owns the session and releases it exactly once
	require.False(t, p.Session.LoggedIn())
}

func TestBatchEmpty(t *testing.T) {
	fake := &fakeTypecho{cid: "42"}
	conn := newFakeTransfer()
	p := newTestPipeline(t, fake, conn)
	require.NoError(t, p.Session.Login(context.Background()))

	b := Batch{Pipeline: p, Relocator: Relocator{StagingRoot: t.TempDir()}, Pace: pacing.None{}}
	out := b.Run(context.Background(), nil, nil)
	require.Equal(t, BatchResult{}, out)
	require.False(t, p.Session.LoggedIn())
}
