package transport

import (
	"net/http"
	"strconv"

	"shop-core/internal/service"
)

// PageResponse is the envelope of every paginated listing
type PageResponse[T any] struct {
	Count   int `json:"count"`
	Limit   int `json:"limit"`
	Offset  int `json:"offset"`
	Results []T `json:"results"`
}

// pageFromQuery reads limit and offset. Unparseable values fall back to the
// defaults applied by Page.Normalize.
func pageFromQuery(r *http.Request) service.Page {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	return service.Page{Limit: limit, Offset: offset}.Normalize()
}

func newPageResponse[T any](results []T, total int, page service.Page) PageResponse[T] {
	if results == nil {
		results = []T{}
	}
	return PageResponse[T]{Count: total, Limit: page.Limit, Offset: page.Offset, Results: results}
}
