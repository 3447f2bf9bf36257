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
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/rules"
)

// minHSTSMaxAge is six months in seconds, the shortest acceptable policy.
const minHSTSMaxAge = 15552000

// strongReferrerPolicies are the values that do not leak full URLs
// cross-origin.
var strongReferrerPolicies = map[string]bool{
	"no-referrer":                     true,
	"same-origin":                     true,
	"strict-origin":                   true,
	"strict-origin-when-cross-origin": true,
}

// restrictedFeatures are the Permissions-Policy features the check expects
// the site to constrain.
var restrictedFeatures = []string{"camera", "microphone", "geolocation", "payment", "usb"}

// =============================================================================
// Headers Prober
// =============================================================================

// HeadersProber runs the response-header checklist against the target's
// top-level response.
type HeadersProber struct {
	client *Client
}

// NewHeadersProber builds the prober with its own 300 ms pacing; it issues
// a single GET.
func NewHeadersProber(timeout time.Duration) *HeadersProber {
	return &HeadersProber{client: NewClient(300*time.Millisecond, timeout)}
}

// HeadersResult carries everything downstream consumers need: the scored
// tests, header-derived findings, and the raw CSP/header material for the
// CSP analyser and the scan summary.
type HeadersResult struct {
	Tests     []datatypes.SecurityTest
	Findings  []datatypes.Finding
	CSP       string
	RawHeader map[string]string
	SetCookie []string
	Body      string
}

// Probe fetches the target and evaluates the header checklist.
//
// # Description
//
// Each check appends one SecurityTest with the signed contribution from the
// scoring table. The CORS and cross-origin-script checks additionally emit
// findings. The CSP policy itself is only checked for presence here; its
// grading lives in the CSP analyser, which consumes HeadersResult.CSP.
func (p *HeadersProber) Probe(ctx context.Context, target string) (*HeadersResult, error) {
	resp, err := p.client.Get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("headers probe: %w", err)
	}

	result := &HeadersResult{
		CSP:       resp.Header.Get("Content-Security-Policy"),
		SetCookie: resp.Header.Values("Set-Cookie"),
		Body:      resp.Body,
		RawHeader: make(map[string]string, len(resp.Header)),
	}
	for key := range resp.Header {
		result.RawHeader[key] = resp.Header.Get(key)
	}

	isHTTPS := strings.HasPrefix(strings.ToLower(target), "https://")

	result.Tests = append(result.Tests, checkCSPPresence(result.CSP))
	result.Tests = append(result.Tests, checkHSTS(resp.Header.Get("Strict-Transport-Security"), isHTTPS))
	result.Tests = append(result.Tests, checkFrameOptions(resp.Header.Get("X-Frame-Options")))
	result.Tests = append(result.Tests, checkContentTypeOptions(resp.Header.Get("X-Content-Type-Options")))
	result.Tests = append(result.Tests, checkReferrerPolicy(resp.Header.Get("Referrer-Policy")))

	corsTest, corsFinding := checkCORS(
		resp.Header.Get("Access-Control-Allow-Origin"),
		resp.Header.Get("Access-Control-Allow-Credentials"),
		target)
	result.Tests = append(result.Tests, corsTest)
	if corsFinding != nil {
		result.Findings = append(result.Findings, *corsFinding)
	}

	result.Tests = append(result.Tests, checkPermissionsPolicy(resp.Header.Get("Permissions-Policy")))
	result.Tests = append(result.Tests, checkSpectre(
		resp.Header.Get("Cross-Origin-Opener-Policy"),
		resp.Header.Get("Cross-Origin-Embedder-Policy")))

	scriptTest, scriptFindings := checkExternalScripts(resp.Body, target)
	result.Tests = append(result.Tests, scriptTest)
	result.Findings = append(result.Findings, scriptFindings...)

	return result, nil
}

// =============================================================================
// Individual Checks
// =============================================================================

func checkCSPPresence(csp string) datatypes.SecurityTest {
	if csp == "" {
		return datatypes.SecurityTest{
			Name: "Content-Security-Policy", Passed: false, ScoreContribution: -25,
			Result: datatypes.ResultFailed,
			Reason: "No Content-Security-Policy header present",
			Recommendation: "Deploy a restrictive CSP with default-src 'none' and explicit allowances",
		}
	}
	return datatypes.SecurityTest{
		Name: "Content-Security-Policy", Passed: true, ScoreContribution: 5,
		Result: datatypes.ResultPassed,
		Reason: "Content-Security-Policy header present",
		Details: csp,
	}
}

func checkHSTS(hsts string, isHTTPS bool) datatypes.SecurityTest {
	test := datatypes.SecurityTest{Name: "Strict-Transport-Security"}
	if !isHTTPS {
		test.Result = datatypes.ResultNA
		test.Reason = "HSTS only applies to HTTPS targets"
		return test
	}
	if hsts == "" {
		test.Passed = false
		test.ScoreContribution = -20
		test.Result = datatypes.ResultFailed
		test.Reason = "No Strict-Transport-Security header present"
		test.Recommendation = "Add Strict-Transport-Security with max-age of at least six months"
		return test
	}

	maxAge := parseHSTSMaxAge(hsts)
	if maxAge < minHSTSMaxAge {
		test.Passed = false
		test.ScoreContribution = -10
		test.Result = datatypes.ResultFailed
		test.Reason = fmt.Sprintf("HSTS max-age %d is below six months", maxAge)
		test.Recommendation = "Raise max-age to at least 15552000 seconds"
		return test
	}

	test.Passed = true
	test.ScoreContribution = 5
	test.Result = datatypes.ResultPassed
	test.Reason = "HSTS present with sufficient max-age"
	test.Details = hsts
	return test
}

// parseHSTSMaxAge extracts the max-age directive; 0 when absent.
func parseHSTSMaxAge(hsts string) int {
	for _, part := range strings.Split(hsts, ";") {
		part = strings.TrimSpace(strings.ToLower(part))
		if value, found := strings.CutPrefix(part, "max-age="); found {
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				return n
			}
		}
	}
	return 0
}

func checkFrameOptions(xfo string) datatypes.SecurityTest {
	upper := strings.ToUpper(strings.TrimSpace(xfo))
	if upper == "DENY" || upper == "SAMEORIGIN" {
		return datatypes.SecurityTest{
			Name: "X-Frame-Options", Passed: true, ScoreContribution: 5,
			Result: datatypes.ResultPassed,
			Reason: "X-Frame-Options set to " + upper,
		}
	}
	return datatypes.SecurityTest{
		Name: "X-Frame-Options", Passed: false, ScoreContribution: -20,
		Result: datatypes.ResultFailed,
		Reason: "X-Frame-Options missing or permissive; the site can be framed for clickjacking",
		Recommendation: "Set X-Frame-Options: DENY or SAMEORIGIN",
	}
}

func checkContentTypeOptions(xcto string) datatypes.SecurityTest {
	if strings.EqualFold(strings.TrimSpace(xcto), "nosniff") {
		return datatypes.SecurityTest{
			Name: "X-Content-Type-Options", Passed: true, ScoreContribution: 0,
			Result: datatypes.ResultPassed,
			Reason: "X-Content-Type-Options set to nosniff",
		}
	}
	return datatypes.SecurityTest{
		Name: "X-Content-Type-Options", Passed: false, ScoreContribution: -5,
		Result: datatypes.ResultFailed,
		Reason: "X-Content-Type-Options missing; browsers may MIME-sniff responses",
		Recommendation: "Set X-Content-Type-Options: nosniff",
	}
}

func checkReferrerPolicy(policy string) datatypes.SecurityTest {
	if strongReferrerPolicies[strings.ToLower(strings.TrimSpace(policy))] {
		return datatypes.SecurityTest{
			Name: "Referrer-Policy", Passed: true, ScoreContribution: 5,
			Result: datatypes.ResultPassed,
			Reason: "Referrer-Policy set to a strong value",
			Details: policy,
		}
	}
	return datatypes.SecurityTest{
		Name: "Referrer-Policy", Passed: false, ScoreContribution: 0,
		Result: datatypes.ResultInfo,
		Reason: "Referrer-Policy missing or weak; full URLs may leak to other origins",
		Recommendation: "Set Referrer-Policy: strict-origin-when-cross-origin",
	}
}

func checkCORS(allowOrigin, allowCredentials, target string) (datatypes.SecurityTest, *datatypes.Finding) {
	wildcard := strings.TrimSpace(allowOrigin) == "*"
	credentials := strings.EqualFold(strings.TrimSpace(allowCredentials), "true")

	switch {
	case wildcard && credentials:
		finding, err := rules.NewFinding(rules.RuleSECCORSWildcard, target,
			"Access-Control-Allow-Origin: * with Access-Control-Allow-Credentials: true", "")
		if err != nil {
			finding = datatypes.Finding{}
		}
		return datatypes.SecurityTest{
			Name: "CORS Policy", Passed: false, ScoreContribution: -25,
			Result: datatypes.ResultFailed,
			Reason: "Wildcard origin combined with credentials exposes authenticated responses to any site",
			Recommendation: "Reflect only an allow-list of origins; never combine * with credentials",
		}, &finding
	case wildcard:
		finding, err := rules.NewFinding(rules.RuleSECCORSWildcard, target,
			"Access-Control-Allow-Origin: *", "Access-Control-Allow-Origin is a wildcard; any origin can read responses")
		if err != nil {
			finding = datatypes.Finding{}
		}
		finding.Severity = datatypes.SeverityHigh
		return datatypes.SecurityTest{
			Name: "CORS Policy", Passed: false, ScoreContribution: -10,
			Result: datatypes.ResultFailed,
			Reason: "Access-Control-Allow-Origin is a wildcard",
			Recommendation: "Restrict allowed origins to an explicit list",
		}, &finding
	default:
		return datatypes.SecurityTest{
			Name: "CORS Policy", Passed: true, ScoreContribution: 5,
			Result: datatypes.ResultPassed,
			Reason: "No permissive CORS configuration observed",
		}, nil
	}
}

func checkPermissionsPolicy(policy string) datatypes.SecurityTest {
	if strings.TrimSpace(policy) == "" {
		return datatypes.SecurityTest{
			Name: "Permissions-Policy", Passed: false, ScoreContribution: -5,
			Result: datatypes.ResultFailed,
			Reason: "Permissions-Policy missing; powerful features default to allowed",
			Recommendation: "Restrict camera, microphone, geolocation, payment, and usb",
		}
	}
	if strings.Contains(policy, "*") {
		return datatypes.SecurityTest{
			Name: "Permissions-Policy", Passed: false, ScoreContribution: -10,
			Result: datatypes.ResultFailed,
			Reason: "Permissions-Policy grants a feature to all origins",
			Recommendation: "Replace wildcard allowances with explicit origins or ()",
			Details: policy,
		}
	}

	var unrestricted []string
	for _, feature := range restrictedFeatures {
		if !strings.Contains(policy, feature) {
			unrestricted = append(unrestricted, feature)
		}
	}
	if len(unrestricted) > 0 {
		return datatypes.SecurityTest{
			Name: "Permissions-Policy", Passed: false, ScoreContribution: -5,
			Result: datatypes.ResultFailed,
			Reason: "Permissions-Policy does not restrict: " + strings.Join(unrestricted, ", "),
			Recommendation: "Add the unrestricted features with empty allow-lists",
			Details: policy,
		}
	}
	return datatypes.SecurityTest{
		Name: "Permissions-Policy", Passed: true, ScoreContribution: 5,
		Result: datatypes.ResultPassed,
		Reason: "Permissions-Policy restricts the sensitive feature set",
		Details: policy,
	}
}

func checkSpectre(coop, coep string) datatypes.SecurityTest {
	coopOK := strings.EqualFold(strings.TrimSpace(coop), "same-origin")
	coepOK := strings.EqualFold(strings.TrimSpace(coep), "require-corp") ||
		strings.EqualFold(strings.TrimSpace(coep), "credentialless")
	if coopOK && coepOK {
		return datatypes.SecurityTest{
			Name: "Spectre Mitigation", Passed: true, ScoreContribution: 5,
			Result: datatypes.ResultPassed,
			Reason: "COOP and COEP isolate the browsing context",
		}
	}
	return datatypes.SecurityTest{
		Name: "Spectre Mitigation", Passed: false, ScoreContribution: -5,
		Result: datatypes.ResultFailed,
		Reason: "Cross-Origin-Opener-Policy/Embedder-Policy missing or weak",
		Recommendation: "Set COOP: same-origin and COEP: require-corp",
	}
}

// checkExternalScripts scans the HTML body for cross-origin script sources.
func checkExternalScripts(body, target string) (datatypes.SecurityTest, []datatypes.Finding) {
	test := datatypes.SecurityTest{Name: "Cross-Origin Scripts"}

	targetURL, err := url.Parse(target)
	if err != nil || body == "" {
		test.Result = datatypes.ResultNA
		test.Reason = "No HTML body available for script inspection"
		return test, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		test.Result = datatypes.ResultNA
		test.Reason = "Response body is not parseable HTML"
		return test, nil
	}

	externalOrigins := make(map[string]bool)
	doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		srcURL, err := targetURL.Parse(strings.TrimSpace(src))
		if err != nil {
			return
		}
		if srcURL.Host != "" && !strings.EqualFold(srcURL.Host, targetURL.Host) {
			if _, hasIntegrity := sel.Attr("integrity"); !hasIntegrity {
				externalOrigins[srcURL.Scheme+"://"+srcURL.Host] = true
			}
		}
	})

	if len(externalOrigins) == 0 {
		test.Passed = true
		test.ScoreContribution = 5
		test.Result = datatypes.ResultPassed
		test.Reason = "No unprotected cross-origin scripts"
		return test, nil
	}

	var findings []datatypes.Finding
	var origins []string
	for origin := range externalOrigins {
		origins = append(origins, origin)
		if f, err := rules.NewFinding(rules.RuleSECExternalScript, target, origin, ""); err == nil {
			findings = append(findings, f)
		}
	}

	test.Passed = false
	test.ScoreContribution = -10 * len(externalOrigins)
	test.Result = datatypes.ResultFailed
	test.Reason = fmt.Sprintf("%d cross-origin script source(s) without integrity protection", len(externalOrigins))
	test.Recommendation = "Add Subresource Integrity attributes or self-host third-party scripts"
	test.Details = strings.Join(origins, ", ")
	return test, findings
}
