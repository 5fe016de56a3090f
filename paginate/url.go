package paginate

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// pageParams are the query parameters recognised as page markers, in order
// of preference when a URL carries more than one. A bare "p" is not one:
// WordPress uses ?p=<post id>.
var pageParams = []string{"page", "paged", "pg", "page_no", "pagenum"}

var rePageSegment = regexp.MustCompile(`/page/\d+(/|$)`)

// PageURL computes the URL of page n from the URL of any page in the same
// listing:
//  1. an existing page query parameter is set to n
//  2. else an existing /page/<k>/ path segment is rewritten to /page/<n>/
//  3. else /page/<n>/ is appended to the path
//
// The result depends only on the listing and n, so computing page 3 from
// page 1 or from page 2 yields the same URL.
func PageURL(current string, n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("paginate: invalid page number %d", n)
	}
	u, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("paginate: parse %q: %w", current, err)
	}
	num := strconv.Itoa(n)

	query := u.Query()
	for _, key := range pageParams {
		if _, ok := query[key]; ok {
			u.RawQuery = setQueryParam(u.RawQuery, key, num)
			return u.String(), nil
		}
	}

	if loc := rePageSegment.FindStringIndex(u.Path); loc != nil {
		tail := u.Path[loc[1]:]
		trailing := ""
		if strings.HasSuffix(u.Path[loc[0]:loc[1]], "/") {
			trailing = "/"
		}
		u.Path = u.Path[:loc[0]] + "/page/" + num + trailing + tail
		u.RawPath = ""
		return u.String(), nil
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/page/" + num + "/"
	u.RawPath = ""
	return u.String(), nil
}

// setQueryParam replaces every value of key in rawQuery, leaving the order
// and encoding of the other parameters untouched.
func setQueryParam(rawQuery, key, value string) string {
	parts := strings.Split(rawQuery, "&")
	for i, part := range parts {
		k, _, _ := strings.Cut(part, "=")
		if uk, err := url.QueryUnescape(k); err == nil && uk == key {
			parts[i] = k + "=" + url.QueryEscape(value)
		}
	}
	return strings.Join(parts, "&")
}
