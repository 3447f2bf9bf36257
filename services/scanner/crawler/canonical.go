// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package crawler

import (
	"net/url"
	"sort"
	"strings"
)

// Canonical reduces a URL to its canonical form.
//
// # Description
//
// Canonicalisation makes revisit prevention deterministic: two URLs that
// differ only in fragment, query-parameter order, trailing slash, or
// scheme/host case are the same page. The transform is:
//
//   - drop the fragment
//   - sort query parameters lexicographically by key (values for a
//     repeated key keep their relative order)
//   - strip one trailing slash from the path, except the root path
//   - lowercase scheme and host; path case is untouched
//
// Idempotent: Canonical(Canonical(u)) == Canonical(u).
//
// # Outputs
//
//   - string: the canonical URL, or the input unchanged when it does not
//     parse (unparseable URLs are never enqueued anyway).
func Canonical(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.RawQuery != "" {
		u.RawQuery = sortQuery(u.RawQuery)
	}

	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}

// sortQuery re-encodes a query string with keys in lexicographic order.
// url.Values.Encode already sorts keys and preserves per-key value order.
func sortQuery(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	return values.Encode()
}

// sameOrigin reports whether two URLs share scheme and host.
func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

// sortedKeys returns the map's keys in sorted order (deterministic output).
func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
