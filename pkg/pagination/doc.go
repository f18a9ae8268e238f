// Package pagination drives a paged search endpoint one page at a time.
//
// A [Fetcher] owns the session state of a single run: the current page
// number, the fixed page size, the total reported by the server and the
// items accumulated so far. Pages are requested strictly in order and one at
// a time; the next page is never requested before the previous one completes.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher[client.SearchResult](searchClient, pagination.DefaultConfig())
//	for {
//		more, err := fetcher.FetchNextPage(ctx)
//		if err != nil {
//			return err
//		}
//		if !more {
//			break
//		}
//	}
//	names := fetcher.Items()
//
// Completion is decided by the guard page*perPage >= total, evaluated before
// every request. Once it holds, further calls return false without touching
// the network. The first page also fixes a page limit of
// ceil(total/perPage) plus one page of slack; a server whose total keeps
// growing past it fails the run with ErrPageLimit instead of looping. An
// explicit Config.MaxPages replaces that limit and stops quietly, reporting
// the run as truncated.
//
// [Fetcher.FetchAll] is the bulk form of the loop above, and [Fetcher.All]
// yields items one at a time so callers can stop early without paying for the
// remaining pages.
package pagination
