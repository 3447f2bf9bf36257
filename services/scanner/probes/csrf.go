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
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/analyzers"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// stateChanging are the form methods the CSRF prober cares about.
var stateChanging = map[string]bool{"POST": true, "PUT": true, "PATCH": true, "DELETE": true}

// CSRFProber checks crawler-discovered forms for anti-forgery tokens.
type CSRFProber struct {
	client *Client
}

// NewCSRFProber builds the prober with its own 300 ms pacing. CSRF checks
// only refetch pages, so the lightest pacing in the range is enough.
func NewCSRFProber(timeout time.Duration) *CSRFProber {
	return &CSRFProber{client: NewClient(300*time.Millisecond, timeout)}
}

// WithSession attaches authenticated-session credentials.
func (p *CSRFProber) WithSession(cookie string, headers map[string]string) *CSRFProber {
	return &CSRFProber{client: p.client.WithSession(cookie, headers)}
}

// Probe inspects each state-changing form's page for a token.
//
// # Description
//
// pages maps canonical page URL to the HTML the crawler already fetched;
// pages absent from the map are refetched (paced). A form passes when its
// page exposes a hidden token input with a value of at least 16 characters
// or a csrf meta tag. Forms on the same page share one parse. At most
// MaxProbeForms forms are checked.
func (p *CSRFProber) Probe(ctx context.Context, forms []datatypes.Form, pages map[string]string) ([]datatypes.Finding, []string) {
	var findings []datatypes.Finding
	var errs []string

	docs := make(map[string]*goquery.Document)
	checked := 0

	for _, form := range forms {
		if checked >= MaxProbeForms {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if !stateChanging[strings.ToUpper(form.Method)] {
			continue
		}
		checked++

		doc, ok := docs[form.PageURL]
		if !ok {
			body, found := pages[form.PageURL]
			if !found {
				resp, err := p.client.Get(ctx, form.PageURL)
				if err != nil {
					errs = append(errs, fmt.Sprintf("%s: %v", form.PageURL, err))
					continue
				}
				body = resp.Body
			}
			parsed, err := goquery.NewDocumentFromReader(strings.NewReader(body))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: parse: %v", form.PageURL, err))
				continue
			}
			doc = parsed
			docs[form.PageURL] = doc
		}

		if !formMissingToken(doc, form) {
			continue
		}

		evidence := fmt.Sprintf("form method=%s action=%s", form.Method, form.Action)
		finding, err := rules.NewFinding(rules.RuleCSRFMissingToken, form.PageURL, evidence, "")
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		findings = append(findings, finding)
	}
	return findings, errs
}

// formMissingToken locates the crawled form in the parsed page and checks
// it for protection. When the form cannot be matched by action, any form
// with a token on the page counts as protected (conservative).
func formMissingToken(doc *goquery.Document, form datatypes.Form) bool {
	if analyzers.PageHasCSRFMeta(doc) {
		return false
	}

	missing := false
	matched := false
	doc.Find("form").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		method := "GET"
		if m, ok := sel.Attr("method"); ok && strings.TrimSpace(m) != "" {
			method = strings.ToUpper(strings.TrimSpace(m))
		}
		if method != strings.ToUpper(form.Method) {
			return true
		}
		action, _ := sel.Attr("action")
		if !actionMatches(action, form.Action) {
			return true
		}
		matched = true
		missing = analyzers.FormNeedsCSRFToken(doc, sel, method)
		return false
	})

	if !matched {
		// Fall back to the page-level check over all state-changing forms.
		doc.Find("form").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			method, _ := sel.Attr("method")
			if analyzers.FormNeedsCSRFToken(doc, sel, method) {
				missing = true
				return false
			}
			return true
		})
	}
	return missing
}

// actionMatches compares a raw form action attribute with the crawler's
// absolute action URL, tolerating the relative-vs-absolute difference.
func actionMatches(rawAction, absoluteAction string) bool {
	rawAction = strings.TrimSpace(rawAction)
	if rawAction == "" {
		return true
	}
	return strings.HasSuffix(absoluteAction, rawAction) || rawAction == absoluteAction
}
