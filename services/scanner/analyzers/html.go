// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyzers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// =============================================================================
// CSRF Token Detection
// =============================================================================

// csrfTokenName matches the common anti-forgery token naming schemes.
var csrfTokenName = regexp.MustCompile(`(?i)csrf|xsrf|_csrf|authenticity_token|anti[_-]?forgery|__requestverificationtoken|csrfmiddlewaretoken|^token$`)

// minTokenLength is the smallest value length accepted as a real token.
const minTokenLength = 16

// stateChangingMethods are the form methods that require CSRF protection.
var stateChangingMethods = map[string]bool{
	"POST": true, "PUT": true, "PATCH": true, "DELETE": true,
}

// formHasCSRFToken reports whether a form contains a plausible anti-forgery
// token: a hidden input with a token-like name or id and a value of at
// least 16 characters.
func formHasCSRFToken(form *goquery.Selection) bool {
	found := false
	form.Find(`input[type="hidden"]`).EachWithBreak(func(_ int, input *goquery.Selection) bool {
		name, _ := input.Attr("name")
		id, _ := input.Attr("id")
		if !csrfTokenName.MatchString(name) && !csrfTokenName.MatchString(id) {
			return true
		}
		value, _ := input.Attr("value")
		if len(value) >= minTokenLength {
			found = true
			return false
		}
		return true
	})
	return found
}

// PageHasCSRFMeta reports whether the document exposes a CSRF token through
// a meta tag, the Rails/Laravel convention.
func PageHasCSRFMeta(doc *goquery.Document) bool {
	found := false
	doc.Find("meta[name]").EachWithBreak(func(_ int, meta *goquery.Selection) bool {
		name, _ := meta.Attr("name")
		if strings.Contains(strings.ToLower(name), "csrf") || strings.Contains(strings.ToLower(name), "xsrf") {
			found = true
			return false
		}
		return true
	})
	return found
}

// FormNeedsCSRFToken reports whether a discovered form is state-changing
// and its page offers no anti-forgery token.
func FormNeedsCSRFToken(doc *goquery.Document, form *goquery.Selection, method string) bool {
	if !stateChangingMethods[strings.ToUpper(method)] {
		return false
	}
	return !formHasCSRFToken(form) && !PageHasCSRFMeta(doc)
}

// =============================================================================
// HTML Analyser
// =============================================================================

// cspUnsafe matches the two CSP keywords that defeat XSS mitigation.
var cspUnsafe = regexp.MustCompile(`unsafe-inline|unsafe-eval`)

// AnalyzeHTML inspects a page's DOM for policy, script, and form weaknesses.
//
// # Description
//
// Checks, in order: CSP presence (the meta tag, unless cspHeader already
// carries a policy), inline scripts without a nonce, and per-form transport,
// action, CSRF, and input-validation issues. pageURL determines the https
// context for the mixed-content form check.
//
// # Inputs
//
//   - source: the HTML body.
//   - pageURL: absolute URL the body was fetched from.
//   - cspHeader: the Content-Security-Policy response header, "" when absent.
//
// # Outputs
//
//   - []datatypes.Finding: may be empty.
//   - error: parse failure or registry programming error.
func AnalyzeHTML(source, pageURL, cspHeader string) ([]datatypes.Finding, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var findings []datatypes.Finding
	add := func(ruleID, location, evidence, override string) error {
		f, err := rules.NewFinding(ruleID, location, evidence, override)
		if err != nil {
			return err
		}
		findings = append(findings, f)
		return nil
	}

	// CSP: header wins; otherwise look for the meta tag.
	metaCSP := ""
	doc.Find(`meta[http-equiv]`).EachWithBreak(func(_ int, meta *goquery.Selection) bool {
		if equiv, _ := meta.Attr("http-equiv"); strings.EqualFold(equiv, "Content-Security-Policy") {
			metaCSP, _ = meta.Attr("content")
			return false
		}
		return true
	})
	policy := cspHeader
	if policy == "" {
		policy = metaCSP
	}
	switch {
	case policy == "":
		if err := add(rules.RuleSECMissingCSP, pageURL, "", ""); err != nil {
			return nil, err
		}
	case cspUnsafe.MatchString(policy):
		if err := add(rules.RuleSECWeakCSP, pageURL, policy, ""); err != nil {
			return nil, err
		}
	}

	// Inline scripts without a nonce.
	doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		if _, external := script.Attr("src"); external {
			return
		}
		if _, ok := script.Attr("nonce"); ok {
			return
		}
		code := strings.TrimSpace(script.Text())
		if code == "" {
			return
		}
		_ = add(rules.RuleXSSInlineScript, pageURL, code, "")
	})

	// Forms.
	pageIsHTTPS := strings.HasPrefix(strings.ToLower(pageURL), "https://")
	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		method := "GET"
		if m, ok := form.Attr("method"); ok && strings.TrimSpace(m) != "" {
			method = strings.ToUpper(strings.TrimSpace(m))
		}
		action, hasAction := form.Attr("action")
		action = strings.TrimSpace(action)

		if !hasAction || action == "" {
			_ = add(rules.RuleFormNoAction, pageURL, formSnippet(form), "")
		}

		if pageIsHTTPS && strings.HasPrefix(strings.ToLower(action), "http://") {
			hasPassword := form.Find(`input[type="password"]`).Length() > 0
			if hasPassword {
				_ = add(rules.RuleFormInsecure, pageURL, "action="+action, "")
			}
		}

		if FormNeedsCSRFToken(doc, form, method) {
			_ = add(rules.RuleCSRFMissingToken, pageURL, formSnippet(form), "")
		}

		form.Find(`input[type="text"], input[type="email"], input[type="search"], input:not([type]), textarea`).
			Each(func(_ int, input *goquery.Selection) {
				_, hasRequired := input.Attr("required")
				_, hasPattern := input.Attr("pattern")
				_, hasMaxlength := input.Attr("maxlength")
				if hasRequired || hasPattern || hasMaxlength {
					return
				}
				name, _ := input.Attr("name")
				_ = add(rules.RuleFormNoValidation, pageURL, "input name="+name, "")
			})
	})

	return findings, nil
}

// formSnippet produces a short evidence string identifying a form.
func formSnippet(form *goquery.Selection) string {
	method, _ := form.Attr("method")
	action, _ := form.Attr("action")
	return fmt.Sprintf("form method=%q action=%q", method, action)
}
