package client

import (
	"encoding/json"

	rserrors "github.com/Sternrassler/repo-search/pkg/errors"
	"github.com/Sternrassler/repo-search/pkg/pagination"
)

// SearchResult is one repository returned by the search API.
type SearchResult struct {
	FullName string `json:"full_name"`
}

// PageResponse is the wire shape of a search page. Pointer fields let the
// decoder tell a missing field from a zero value; other fields are ignored.
type PageResponse struct {
	TotalCount *int `json:"total_count"`
	Items      *[]struct {
		FullName *string `json:"full_name"`
	} `json:"items"`
}

// DecodePage parses a search page body. Malformed bodies yield a DECODE error.
func DecodePage(body []byte) (pagination.Page[SearchResult], error) {
	page, err := decodePage(body)
	if err != nil {
		return pagination.Page[SearchResult]{}, err
	}
	return page, nil
}

func decodePage(body []byte) (pagination.Page[SearchResult], *rserrors.Error) {
	var resp PageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return pagination.Page[SearchResult]{}, rserrors.Wrap(rserrors.KindDecode, err, "invalid response body")
	}

	if resp.TotalCount == nil {
		return pagination.Page[SearchResult]{}, rserrors.New(rserrors.KindDecode, "response missing total_count")
	}
	if *resp.TotalCount < 0 {
		return pagination.Page[SearchResult]{}, rserrors.New(rserrors.KindDecode, "negative total_count %d", *resp.TotalCount)
	}
	if resp.Items == nil {
		return pagination.Page[SearchResult]{}, rserrors.New(rserrors.KindDecode, "response missing items")
	}

	items := make([]SearchResult, 0, len(*resp.Items))
	for i, item := range *resp.Items {
		if item.FullName == nil {
			return pagination.Page[SearchResult]{}, rserrors.New(rserrors.KindDecode, "item %d missing full_name", i)
		}
		items = append(items, SearchResult{FullName: *item.FullName})
	}

	return pagination.Page[SearchResult]{
		TotalCount: *resp.TotalCount,
		Items:      items,
	}, nil
}

// FullNames extracts the full_name of each result, preserving order.
func FullNames(results []SearchResult) []string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.FullName
	}
	return names
}
