// Package pagination walks cursor-paginated WHOOP collections.
//
// WHOOP collection endpoints return {"records": [...], "next_token": "..."}
// and accept the cursor back as the nextToken query parameter. ListUpTo keeps
// requesting pages until it has the requested number of records, the
// collection is exhausted, or the server hands back the cursor it was just
// given.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(whoopClient, pagination.DefaultConfig())
//	cycles, err := fetcher.ListUpTo(ctx, "/developer/v2/cycle", 30)
//
// Each request asks for min(PageSize, remaining) records, so a limit of 30
// with the default page size costs two requests (25 + 5).
package pagination
