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
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
)

// =============================================================================
// Canonicalisation
// =============================================================================

func TestCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"drops fragment", "https://example.com/page#section", "https://example.com/page"},
		{"sorts query keys", "https://example.com/p?b=2&a=1", "https://example.com/p?a=1&b=2"},
		{"strips trailing slash", "https://example.com/a/", "https://example.com/a"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"lowercases scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"path case untouched", "https://example.com/CaseSensitive", "https://example.com/CaseSensitive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonical(tt.in))
		})
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	inputs := []string{
		"https://Example.com/a/?b=2&a=1#frag",
		"http://example.com",
		"https://example.com/deep/path/",
	}
	for _, in := range inputs {
		once := Canonical(in)
		assert.Equal(t, once, Canonical(once), "input %q", in)
	}
}

func TestCanonicalEquivalenceClasses(t *testing.T) {
	// URLs differing only in fragment, parameter order, trailing slash, or
	// authority case collapse to one visit.
	a := Canonical("http://h/a?a=1&b=2")
	b := Canonical("http://H/a/?b=2&a=1")
	c := Canonical("http://h/a?a=1&b=2#x")
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

// =============================================================================
// Crawl behavior
// =============================================================================

// testOpts returns the fastest options the validator accepts.
func testOpts() datatypes.CrawlerOptions {
	o := datatypes.DefaultCrawlerOptions()
	o.RateLimitMs = 100
	o.TimeoutMs = 5000
	return o
}

func TestCrawlDiscoversAndDeduplicates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<a href="/about">About</a>
			<a href="/about/">About again</a>
			<a href="/about#team">Team</a>
			<a href="/contact?b=2&a=1">Contact</a>
			<a href="/contact?a=1&b=2">Contact dup</a>
			<script>fetch('/api/users')</script>
			</body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/">Home</a></body></html>`)
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><form method="post" action="/contact">
			<input type="text" name="msg"></form></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOpts()
	opts.RespectRobotsTxt = false
	c, err := New(opts, nil, nil)
	require.NoError(t, err)

	result, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)

	// Seed, /about, /contact: the slash, fragment, and param-order variants
	// collapse.
	assert.Len(t, result.URLs, 3)
	assert.Contains(t, result.Endpoints, "/api/users")
	require.Len(t, result.Forms, 1)
	assert.Equal(t, "POST", result.Forms[0].Method)
	assert.True(t, result.Metadata.PagesScanned == 3)
	assert.Equal(t, 1, result.Metadata.FormsDiscovered)
}

func TestCrawlMaxPagesBoundary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<a href="/p1">1</a><a href="/p2">2</a><a href="/p3">3</a>
			</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOpts()
	opts.RespectRobotsTxt = false
	opts.MaxPages = 1
	c, err := New(opts, nil, nil)
	require.NoError(t, err)

	result, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metadata.PagesScanned)
	assert.Len(t, result.URLs, 1)
}

func TestCrawlMaxDepthBoundary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/d1">1</a></body></html>`)
	})
	mux.HandleFunc("/d1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/d2">2</a></body></html>`)
	})
	mux.HandleFunc("/d2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/d3">3</a></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOpts()
	opts.RespectRobotsTxt = false
	opts.MaxDepth = 1
	c, err := New(opts, nil, nil)
	require.NoError(t, err)

	result, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)

	// Seed at depth 0, /d1 at depth 1; /d2 would be depth 2.
	assert.Len(t, result.URLs, 2)
	assert.Equal(t, 1, result.Metadata.MaxDepthReached)
}

func TestCrawlRespectsRobots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<a href="/public">pub</a>
			<a href="/private/secret">priv</a>
			</body></html>`)
	})
	mux.HandleFunc("/public", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>ok</body></html>`)
	})
	var privateHits int
	mux.HandleFunc("/private/", func(w http.ResponseWriter, r *http.Request) {
		privateHits++
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>secret</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(testOpts(), nil, nil)
	require.NoError(t, err)

	result, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Zero(t, privateHits, "disallowed path must never be fetched")
	assert.Equal(t, 1, result.Metadata.SkippedByRobots)
	assert.True(t, result.Metadata.RobotsRespected)
}

func TestCrawlIgnoresRobotsWhenDisabled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/private/x">priv</a></body></html>`)
	})
	mux.HandleFunc("/private/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>secret</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOpts()
	opts.RespectRobotsTxt = false
	c, err := New(opts, nil, nil)
	require.NoError(t, err)

	result, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Zero(t, result.Metadata.SkippedByRobots)
	assert.False(t, result.Metadata.RobotsRespected)
	assert.Len(t, result.URLs, 2)
}

func TestCrawlExternalLinksDropped(t *testing.T) {
	var externalHit bool
	external := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		externalHit = true
	}))
	defer external.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><a href="%s/out">out</a></body></html>`, external.URL)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOpts()
	opts.RespectRobotsTxt = false
	c, err := New(opts, nil, nil)
	require.NoError(t, err)

	result, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, externalHit)
	assert.Len(t, result.URLs, 1)
}

func TestCrawlSeedUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	opts := testOpts()
	opts.RespectRobotsTxt = false
	c, err := New(opts, nil, nil)
	require.NoError(t, err)

	_, err = c.Crawl(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSeedUnreachable)
}

func TestCrawlPerURLFailureDoesNotAbort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/broken">broken</a><a href="/ok">ok</a></body></html>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>fine</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOpts()
	opts.RespectRobotsTxt = false
	c, err := New(opts, nil, nil)
	require.NoError(t, err)

	result, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metadata.FailedRequests)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "/broken")
}

func TestCrawlKeepsServerErrorBodies(t *testing.T) {
	trace := "Error: boom\n    at handler (/var/app/server.js:10:15)\n"
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/crash">crash</a></body></html>`)
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, trace)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOpts()
	opts.RespectRobotsTxt = false
	c, err := New(opts, nil, nil)
	require.NoError(t, err)

	result, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)

	crashURL := Canonical(srv.URL + "/crash")
	assert.Equal(t, http.StatusInternalServerError, result.Statuses[crashURL])
	assert.Equal(t, trace, result.Pages[crashURL], "5xx body is kept for inspection")
	assert.Equal(t, 1, result.Metadata.FailedRequests)
}

func TestCrawlSeedFetchedBeforeSitemap(t *testing.T) {
	// A sitemap as large as the page budget must not starve the seed.
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0"?><urlset>`)
		for i := 1; i <= 5; i++ {
			fmt.Fprintf(w, "<url><loc>http://%s/s%d</loc></url>", r.Host, i)
		}
		fmt.Fprint(w, `</urlset>`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>home</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOpts()
	opts.RespectRobotsTxt = false
	opts.MaxPages = 2
	c, err := New(opts, nil, nil)
	require.NoError(t, err)

	result, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err, "the seed is fetched before sitemap entries")
	assert.Contains(t, result.URLs, Canonical(srv.URL))
}

func TestCrawlSessionHeadersAttached(t *testing.T) {
	var gotCookie, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			gotCookie = r.Header.Get("Cookie")
			gotHeader = r.Header.Get("X-Session-Token")
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html></html>`)
	}))
	defer srv.Close()

	opts := testOpts()
	opts.RespectRobotsTxt = false
	opts.SessionCookie = "sid=abc123"
	opts.SessionExtraHeaders = map[string]string{"X-Session-Token": "tok"}
	c, err := New(opts, nil, nil)
	require.NoError(t, err)

	_, err = c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "sid=abc123", gotCookie)
	assert.Equal(t, "tok", gotHeader)
}
