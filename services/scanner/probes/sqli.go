// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package probes

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"time"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// =============================================================================
// Payloads and Signatures
// =============================================================================

// sqliPayloads are syntax-breaking fragments. They can at worst produce a
// database error; none alters data.
var sqliPayloads = []string{
	`'`,
	`'--`,
	`"`,
	`' OR '1'='1`,
	`' UNION SELECT NULL--`,
}

// dbErrorSignatures is the catalogue of database error shapes, grouped by
// engine for the finding evidence.
var dbErrorSignatures = []struct {
	engine string
	re     *regexp.Regexp
}{
	{"MySQL", regexp.MustCompile(`(?i)SQL syntax.*MySQL|Warning.*mysql_|MySqlException|valid MySQL result`)},
	{"PostgreSQL", regexp.MustCompile(`(?i)PostgreSQL.*ERROR|pg_query\(|PSQLException|unterminated quoted string`)},
	{"MSSQL", regexp.MustCompile(`(?i)Microsoft OLE DB Provider for SQL Server|Unclosed quotation mark|System\.Data\.SqlClient\.SqlException`)},
	{"Oracle", regexp.MustCompile(`\bORA-\d{5}\b|(?i)Oracle error`)},
	{"SQLite", regexp.MustCompile(`(?i)SQLite/JDBCDriver|sqlite3\.OperationalError|SQLITE_ERROR|near ".*": syntax error`)},
	{"generic", regexp.MustCompile(`(?i)syntax error in (?:query|statement)|sql (?:syntax|error)|query failed`)},
}

// matchDBError returns the engine whose error signature matches body.
func matchDBError(body string) (string, bool) {
	for _, sig := range dbErrorSignatures {
		if sig.re.MatchString(body) {
			return sig.engine, true
		}
	}
	return "", false
}

// numericSegment spots URLs whose last path segment is numeric (typical
// record-by-id routes) as injection candidates.
var numericSegment = regexp.MustCompile(`/\d+/?$`)

// =============================================================================
// SQL-Error Prober
// =============================================================================

// SQLiProber injects syntax-breaking values and pattern-matches database
// error disclosure.
type SQLiProber struct {
	client *Client
}

// NewSQLiProber builds the prober with its own 500 ms pacing.
func NewSQLiProber(timeout time.Duration) *SQLiProber {
	return &SQLiProber{client: NewClient(500*time.Millisecond, timeout)}
}

// WithSession attaches authenticated-session credentials.
func (p *SQLiProber) WithSession(cookie string, headers map[string]string) *SQLiProber {
	return &SQLiProber{client: p.client.WithSession(cookie, headers)}
}

// Probe exercises candidate URLs with the payload set.
//
// # Description
//
// Candidates are URLs carrying query parameters or ending in a numeric path
// segment. The payload replaces the first query parameter's value (or is
// appended as ?id=<payload> for numeric routes). A database error signature
// in the response yields WSS-SQLI-001: severity HIGH when the server
// answered 500, MEDIUM otherwise. One finding per URL; remaining payloads
// for that URL are skipped.
func (p *SQLiProber) Probe(ctx context.Context, urls []string) ([]datatypes.Finding, []string) {
	var findings []datatypes.Finding
	var errs []string

	probed := 0
	for _, target := range urls {
		if probed >= MaxProbeURLs {
			break
		}
		if ctx.Err() != nil {
			break
		}

		u, err := url.Parse(target)
		if err != nil {
			continue
		}
		hasParams := len(u.Query()) > 0
		if !hasParams && !numericSegment.MatchString(u.Path) {
			continue
		}
		probed++

		for _, payload := range sqliPayloads {
			if ctx.Err() != nil {
				break
			}
			probeURL := injectSQLPayload(u, payload, hasParams)
			resp, err := p.client.Get(ctx, probeURL)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", probeURL, err))
				continue
			}

			engine, hit := matchDBError(resp.Body)
			if !hit {
				continue
			}

			description := fmt.Sprintf("A syntax-breaking parameter value produced a %s error in the response, indicating unsanitized query construction", engine)
			finding, ferr := rules.NewFinding(rules.RuleSQLIError, target, errorEvidence(resp.Body), description)
			if ferr != nil {
				errs = append(errs, ferr.Error())
				break
			}
			if resp.StatusCode >= 500 {
				finding.Severity = datatypes.SeverityHigh
			} else {
				finding.Severity = datatypes.SeverityMedium
			}
			findings = append(findings, finding)
			break
		}
	}
	return findings, errs
}

// injectSQLPayload builds the probe URL for one payload.
func injectSQLPayload(u *url.URL, payload string, hasParams bool) string {
	dup := *u
	q := dup.Query()
	if hasParams {
		keys := make([]string, 0, len(q))
		for key := range q {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		q.Set(keys[0], payload)
	} else {
		q.Set("id", payload)
	}
	dup.RawQuery = q.Encode()
	return dup.String()
}

// errorEvidence extracts the first matching signature region from body.
func errorEvidence(body string) string {
	for _, sig := range dbErrorSignatures {
		if loc := sig.re.FindStringIndex(body); loc != nil {
			lo := loc[0] - 60
			if lo < 0 {
				lo = 0
			}
			hi := loc[1] + 60
			if hi > len(body) {
				hi = len(body)
			}
			return body[lo:hi]
		}
	}
	return ""
}
