package api

import (
	"net/url"
	"strings"
)

// AddQueryParams merges params into the query string of path. Keys present in
// params replace existing values; a key with no values is removed. The
// fragment, if any, is kept at the end.
func AddQueryParams(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}

	fragment := ""
	if i := strings.Index(path, "#"); i >= 0 {
		path, fragment = path[:i], path[i:]
	}
	rawQuery := ""
	if i := strings.Index(path, "?"); i >= 0 {
		path, rawQuery = path[:i], path[i+1:]
	}

	// ParseQuery keeps every well-formed pair even when it reports an error.
	query, _ := url.ParseQuery(rawQuery)
	for key, values := range params {
		query.Del(key)
		for _, v := range values {
			query.Add(key, v)
		}
	}

	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return path + fragment
}
