// Package reposync implements the file-synchronization algorithm shared by
// every provider backend: list the full recursive tree page by page, then
// bulk-fetch entry contents in provider-sized batches while publishing
// progress.
package reposync

import (
	"context"
	"fmt"
	"path"

	"github.com/samber/lo"
	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/contentsync/domain"
)

const (
	// ProgressIdle is published when no fetch cycle is running; 0 stays a
	// valid "started, nothing done yet" value.
	ProgressIdle = -1

	// DefaultBatchLimit is used when a provider exposes no per-request
	// bulk-fetch limit.
	DefaultBatchLimit = 30
)

// TreePage is one page of the recursive tree listing. Truncated signals that
// more pages remain; pages must be requested strictly in sequence because
// each continuation depends on this flag.
type TreePage struct {
	Entries   []domain.FileListItem
	Truncated bool
}

// Source adapts one provider's endpoints to the shared algorithm.
type Source struct {
	// ListPage fetches one page (1-based) of the recursive tree, already
	// filtered to blob-type entries.
	ListPage func(ctx context.Context, page int) (TreePage, error)

	// FetchBatch retrieves the text of up to BatchLimit files in one call.
	FetchBatch func(ctx context.Context, paths []string) (map[string]domain.FileContents, error)

	// BatchLimit is the provider's per-request bulk-fetch cap; zero or
	// negative falls back to DefaultBatchLimit.
	BatchLimit int
}

// ListAll walks the paginated tree listing until the provider stops
// signalling more data, accumulating blob entries.
func ListAll(ctx context.Context, src Source) ([]domain.FileListItem, error) {
	var all []domain.FileListItem

	for page := 1; ; page++ {
		tree, err := src.ListPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to list tree page %d: %w", page, err)
		}

		all = append(all, tree.Entries...)

		if !tree.Truncated {
			break
		}
	}

	return all, nil
}

// FetchAll runs the full cycle: list, split entries from assets, bulk-fetch
// entry text batch by batch, and assemble the contents map. Progress is
// published as ceil(done/total*100) after each batch and always reset to
// ProgressIdle on the way out, success or failure.
func FetchAll(ctx context.Context, src Source, progress *domain.Store[int]) (domain.ContentsMap, error) {
	items, err := ListAll(ctx, src)
	if err != nil {
		return nil, err
	}

	contents := make(domain.ContentsMap, len(items))
	for _, item := range items {
		contents[item.Path] = domain.FileContents{
			SHA:  item.SHA,
			Size: item.Size,
			Meta: map[string]string{"type": item.Type},
		}
	}

	entryPaths := lo.FilterMap(items, func(item domain.FileListItem, _ int) (string, bool) {
		return item.Path, item.Type == "entry"
	})

	if fetchErr := fetchEntryContents(ctx, src, entryPaths, contents, progress); fetchErr != nil {
		return nil, fetchErr
	}

	logger.Debugf("Fetched %d files (%d entries) from repository", len(items), len(entryPaths))

	return contents, nil
}

func fetchEntryContents(
	ctx context.Context,
	src Source,
	paths []string,
	contents domain.ContentsMap,
	progress *domain.Store[int],
) error {
	if progress != nil {
		defer progress.Set(ProgressIdle)
	}
	if len(paths) == 0 {
		return nil
	}

	limit := src.BatchLimit
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	total := len(paths)
	done := 0

	// Batches run strictly in sequence: one shared rate limit, and the
	// progress percentage must never decrease.
	for _, batch := range lo.Chunk(paths, limit) {
		fetched, err := src.FetchBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to fetch file contents: %w", err)
		}

		for p, fc := range fetched {
			existing := contents[p]
			existing.Text = fc.Text
			if fc.SHA != "" {
				existing.SHA = fc.SHA
			}
			if fc.Size > 0 {
				existing.Size = fc.Size
			}
			if existing.Meta == nil {
				existing.Meta = map[string]string{"type": domain.EntryType(p)}
			}
			contents[p] = existing
		}

		done += len(batch)
		if progress != nil {
			progress.Set(percent(done, total))
		}
	}

	return nil
}

func percent(done, total int) int {
	return (done*100 + total - 1) / total
}

// ToListItem projects raw tree data to the shared list-item shape.
func ToListItem(p, sha string, size int64) domain.FileListItem {
	return domain.FileListItem{
		Path: p,
		SHA:  sha,
		Size: size,
		Name: path.Base(p),
		Type: domain.EntryType(p),
	}
}
