package sdk4me

import (
	"context"
	"net/http"
)

// Each visits every record of a paged collection in order and returns the
// number of records visited. Pages are requested with the maximum page size
// and followed through the Link header until there is no next page.
//
// An invalid page aborts the walk with a *PaginationError; records of earlier
// pages have already been visited. An error returned by visit also aborts the
// walk and is returned as is.
func (c *Client) Each(ctx context.Context, path string, params Params, header http.Header, visit func(Object) error) (int, error) {
	first := Params{P("per_page", MaxPageSize)}.Merge(params)
	next := c.expandPath(path, first)

	count := 0
	for next != "" {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		resp := c.Get(ctx, next, nil, header)
		if !resp.Valid() {
			return count, &PaginationError{Path: next, Response: resp}
		}
		for _, record := range resp.Records() {
			if err := visit(record); err != nil {
				return count, err
			}
			count++
		}
		next = resp.PaginationRelativeLink("next")
	}
	return count, nil
}

// All collects every record of a paged collection.
func (c *Client) All(ctx context.Context, path string, params Params, header http.Header) ([]Object, error) {
	var records []Object
	_, err := c.Each(ctx, path, params, header, func(o Object) error {
		records = append(records, o)
		return nil
	})
	return records, err
}
