// Package pagination harvests the registry listing into an ordered reference
// set.
//
// The listing endpoint reports totalPages in every response envelope. The
// harvester fetches page 0 to learn the page count, then walks the remaining
// pages strictly in order, one request at a time:
//
//	fetcher := pagination.PageFetcherFunc(func(ctx context.Context, page int) (*registry.ListingPage, error) {
//		return api.SearchPage(ctx, filter, page)
//	})
//	harvester := pagination.NewHarvester(fetcher, store, pagination.DefaultConfig(), logger)
//	refs, err := harvester.Harvest(ctx)
//
// The harvester:
//   - Returns a saved reference set verbatim, without any request
//   - Fails with ErrBootstrap when page 0 cannot be fetched
//   - Logs and skips any later page that fails (the client already retried)
//   - Stops early at the first page with no content
//   - Persists the collected references once, after the walk completes
//
// A cancelled walk persists nothing, so the next run harvests from scratch.
package pagination
