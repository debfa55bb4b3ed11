// Package pagination drives a search scroll cursor from open to release.
//
// A scroll export is strictly sequential: every page request carries the
// cursor id returned by the previous page, so pages can never be fetched in
// parallel. This package splits that loop into three pieces:
//
//   - BatchFetcher sends one page request and retries it with exponential
//     backoff until a well-formed response arrives or attempts run out.
//   - CursorManager opens the cursor with the initial query and hands out a
//     Cursor that owns the current scroll id.
//   - Cursor advances page by page and releases the server-side context on
//     Close, exactly once, even when the caller's context is already done.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(sender, pagination.DefaultRetryPolicy(), logger)
//	manager, err := pagination.NewCursorManager(pagination.CursorConfig{
//		BaseURL: "http://localhost:9200",
//		Query:   query,
//	}, sender, fetcher, logger)
//	err = manager.WithCursor(ctx, func(ctx context.Context, c *pagination.Cursor, first *pagination.Batch) error {
//		for batch := first; len(batch.Hits) > 0; {
//			// consume batch.Hits
//			if batch, err = c.Advance(ctx); err != nil {
//				return err
//			}
//		}
//		return nil
//	})
//
// An empty hits array is the only end-of-data signal. A 200 response with no
// hits container at all is malformed and retried like any other failure.
package pagination
