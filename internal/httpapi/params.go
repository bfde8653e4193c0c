package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// TimeParam parses the named query parameter as an RFC 3339 timestamp. A
// missing parameter yields (nil, true). On a malformed value it writes a 400
// envelope and returns false; handlers must return immediately in that case.
func TimeParam(rw http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		Write(rw, http.StatusBadRequest, Response{
			Message: fmt.Sprintf("%s must be an RFC 3339 timestamp", name),
		})
		return nil, false
	}
	return &t, true
}

// PageParams parses the optional limit and offset query parameters. Missing
// parameters yield zero, which callers interpret as "no limit" or apply their
// own default to. On an invalid value it writes a 400 envelope and returns
// false.
func PageParams(rw http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			Write(rw, http.StatusBadRequest, Response{Message: "limit must be a positive integer"})
			return 0, 0, false
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			Write(rw, http.StatusBadRequest, Response{Message: "offset must be a non-negative integer"})
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
