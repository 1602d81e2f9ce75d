package reposync_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/contentsync/domain"
	"github.com/rios0rios0/contentsync/infrastructure/backend/reposync"
)

// pagedSource fakes a provider capping pages at pageSize entries and batches
// at batchLimit paths.
func pagedSource(paths []string, pageSize, batchLimit int, pageCalls, batchCalls *int) reposync.Source {
	return reposync.Source{
		ListPage: func(_ context.Context, page int) (reposync.TreePage, error) {
			*pageCalls++
			start := (page - 1) * pageSize
			end := start + pageSize
			if end > len(paths) {
				end = len(paths)
			}
			items := make([]domain.FileListItem, 0, pageSize)
			for _, p := range paths[start:end] {
				items = append(items, reposync.ToListItem(p, "sha-"+p, 1))
			}
			return reposync.TreePage{Entries: items, Truncated: end < len(paths)}, nil
		},
		FetchBatch: func(_ context.Context, batch []string) (map[string]domain.FileContents, error) {
			*batchCalls++
			result := make(map[string]domain.FileContents, len(batch))
			for _, p := range batch {
				result[p] = domain.FileContents{Text: "text of " + p}
			}
			return result, nil
		},
		BatchLimit: batchLimit,
	}
}

func entryPaths(n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("content/post-%03d.md", i)
	}
	return paths
}

func TestListAll(t *testing.T) {
	t.Parallel()

	t.Run("should issue exactly ceil(N/P) page requests and return N entries", func(t *testing.T) {
		t.Parallel()

		// given: 25 entries, page size 10 -> 3 pages
		paths := entryPaths(25)
		pageCalls, batchCalls := 0, 0
		src := pagedSource(paths, 10, 10, &pageCalls, &batchCalls)

		// when
		items, err := reposync.ListAll(context.Background(), src)

		// then
		require.NoError(t, err)
		assert.Len(t, items, 25)
		assert.Equal(t, 3, pageCalls)
	})

	t.Run("should stop after one page when nothing is truncated", func(t *testing.T) {
		t.Parallel()

		// given
		paths := entryPaths(5)
		pageCalls, batchCalls := 0, 0
		src := pagedSource(paths, 10, 10, &pageCalls, &batchCalls)

		// when
		items, err := reposync.ListAll(context.Background(), src)

		// then
		require.NoError(t, err)
		assert.Len(t, items, 5)
		assert.Equal(t, 1, pageCalls)
	})

	t.Run("should propagate a page failure", func(t *testing.T) {
		t.Parallel()

		// given
		src := reposync.Source{
			ListPage: func(_ context.Context, _ int) (reposync.TreePage, error) {
				return reposync.TreePage{}, errors.New("boom")
			},
		}

		// when
		_, err := reposync.ListAll(context.Background(), src)

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "page 1")
	})
}

func TestFetchAll(t *testing.T) {
	t.Parallel()

	t.Run("should issue exactly ceil(M/B) batch requests", func(t *testing.T) {
		t.Parallel()

		// given: 25 entry files, batch limit 10 -> 3 batches
		paths := entryPaths(25)
		pageCalls, batchCalls := 0, 0
		src := pagedSource(paths, 100, 10, &pageCalls, &batchCalls)

		// when
		contents, err := reposync.FetchAll(context.Background(), src, nil)

		// then
		require.NoError(t, err)
		assert.Len(t, contents, 25)
		assert.Equal(t, 3, batchCalls)
		assert.Equal(t, "text of content/post-000.md", contents["content/post-000.md"].Text)
	})

	t.Run("should publish non-decreasing progress ending at 100 and reset to idle", func(t *testing.T) {
		t.Parallel()

		// given
		paths := entryPaths(25)
		pageCalls, batchCalls := 0, 0
		src := pagedSource(paths, 100, 10, &pageCalls, &batchCalls)
		progress := domain.NewStore(reposync.ProgressIdle)
		var published []int
		progress.Subscribe(func(pct int) { published = append(published, pct) })

		// when
		_, err := reposync.FetchAll(context.Background(), src, progress)

		// then
		require.NoError(t, err)
		// initial idle, then 40, 80, 100, then reset
		require.Equal(t, []int{reposync.ProgressIdle, 40, 80, 100, reposync.ProgressIdle}, published)
		for i := 1; i < len(published)-1; i++ {
			assert.GreaterOrEqual(t, published[i], published[i-1])
		}
	})

	t.Run("should reset progress to idle when a batch fails", func(t *testing.T) {
		t.Parallel()

		// given
		paths := entryPaths(10)
		pageCalls := 0
		src := pagedSource(paths, 100, 5, &pageCalls, new(int))
		src.FetchBatch = func(_ context.Context, _ []string) (map[string]domain.FileContents, error) {
			return nil, errors.New("boom")
		}
		progress := domain.NewStore(reposync.ProgressIdle)

		// when
		_, err := reposync.FetchAll(context.Background(), src, progress)

		// then
		require.Error(t, err)
		assert.Equal(t, reposync.ProgressIdle, progress.Get())
	})

	t.Run("should exclude assets from bulk fetch but keep them listed", func(t *testing.T) {
		t.Parallel()

		// given: one entry, one asset
		paths := []string{"content/a.md", "static/logo.png"}
		pageCalls, batchCalls := 0, 0
		src := pagedSource(paths, 100, 10, &pageCalls, &batchCalls)
		var batched []string
		inner := src.FetchBatch
		src.FetchBatch = func(ctx context.Context, batch []string) (map[string]domain.FileContents, error) {
			batched = append(batched, batch...)
			return inner(ctx, batch)
		}

		// when
		contents, err := reposync.FetchAll(context.Background(), src, nil)

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{"content/a.md"}, batched)
		assert.Contains(t, contents, "static/logo.png")
		assert.Empty(t, contents["static/logo.png"].Text)
		assert.Equal(t, "asset", contents["static/logo.png"].Meta["type"])
	})

	t.Run("should fall back to the default batch limit", func(t *testing.T) {
		t.Parallel()

		// given: 31 entries with no batch limit -> 2 batches of <=30
		paths := entryPaths(31)
		pageCalls, batchCalls := 0, 0
		src := pagedSource(paths, 100, 0, &pageCalls, &batchCalls)

		// when
		_, err := reposync.FetchAll(context.Background(), src, nil)

		// then
		require.NoError(t, err)
		assert.Equal(t, 2, batchCalls)
	})
}
