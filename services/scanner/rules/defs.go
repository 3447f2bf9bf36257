// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
)

// Canonical rule IDs referenced across the scanner.
const (
	RuleXSSReflected      = "WSS-XSS-001"
	RuleXSSDOMSink        = "WSS-XSS-002"
	RuleXSSEval           = "WSS-XSS-003"
	RuleXSSStringTimer    = "WSS-XSS-004"
	RuleXSSInlineScript   = "WSS-XSS-005"
	RuleSQLIError         = "WSS-SQLI-001"
	RulePathTraversal     = "WSS-PATH-001"
	RuleCSRFMissingToken  = "WSS-CSRF-001"
	RuleSECMissingCSP     = "WSS-SEC-001"
	RuleSECWeakCSP        = "WSS-SEC-002"
	RuleSECInsecureProto  = "WSS-SEC-003"
	RuleSECCORSWildcard   = "WSS-SEC-004"
	RuleSECExternalScript = "WSS-SEC-005"
	RuleSECHardcodedKey   = "WSS-SEC-006"
	RuleSECInsecureCookie = "WSS-SEC-007"
	RuleAuthCookieSecure  = "WSS-AUTH-001"
	RuleAuthCookieHTTP    = "WSS-AUTH-002"
	RuleAuthSameSite      = "WSS-AUTH-003"
	RuleAuthWeakToken     = "WSS-AUTH-004"
	RuleAuthBypassDirect  = "WSS-AUTH-005"
	RuleAuthTamperedToken = "WSS-AUTH-006"
	RuleAuthBypassParam   = "WSS-AUTH-007"
	RuleDepVulnerable     = "WSS-DEP-001"
	RuleDepUnparseable    = "WSS-DEP-002"
	RuleFormInsecure      = "WSS-FORM-001"
	RuleFormNoAction      = "WSS-FORM-002"
	RuleFormNoValidation  = "WSS-FORM-003"
	RuleExcStackTrace     = "WSS-EXC-001"
	RuleExcDebugMode      = "WSS-EXC-002"
	RuleExcSensitive      = "WSS-EXC-003"
)

// defaultRules is the append-only rule table.
//
// OWASP identifiers are written as the original taxonomy assignments
// (several still in 2021 form); buildRegistry remaps them to 2025 so that
// stored findings always carry the current labels.
var defaultRules = []RuleDef{
	// =========================================================================
	// XSS family
	// =========================================================================
	{
		ID:          RuleXSSReflected,
		Type:        "Reflected Cross-Site Scripting",
		Severity:    datatypes.SeverityHigh,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A03:2021",
		CWE:         "CWE-79",
		Description: "A request parameter is reflected into the response in a dangerous context without encoding",
		Remediation: "Encode output for its HTML context and validate input server-side; set a restrictive Content-Security-Policy",
		References:  []string{"https://owasp.org/www-community/attacks/xss/"},
	},
	{
		ID:          RuleXSSDOMSink,
		Type:        "Dangerous DOM Sink",
		Severity:    datatypes.SeverityHigh,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A03:2021",
		CWE:         "CWE-79",
		Description: "Assignment to innerHTML/outerHTML or a document.write call can execute attacker-controlled markup",
		Remediation: "Use textContent or a sanitization library before inserting untrusted data into the DOM",
	},
	{
		ID:          RuleXSSEval,
		Type:        "Dynamic Code Evaluation",
		Severity:    datatypes.SeverityCritical,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A03:2021",
		CWE:         "CWE-95",
		Description: "eval() or new Function() executes arbitrary strings as code",
		Remediation: "Remove eval/new Function; parse data with JSON.parse and dispatch behavior through explicit functions",
	},
	{
		ID:          RuleXSSStringTimer,
		Type:        "String-Form Timer",
		Severity:    datatypes.SeverityMedium,
		Confidence:  datatypes.ConfidenceMedium,
		OWASP:       "A03:2021",
		CWE:         "CWE-95",
		Description: "setTimeout/setInterval with a string argument evaluates the string as code",
		Remediation: "Pass a function reference instead of a code string",
	},
	{
		ID:          RuleXSSInlineScript,
		Type:        "Inline Script Without Nonce",
		Severity:    datatypes.SeverityHigh,
		Confidence:  datatypes.ConfidenceMedium,
		OWASP:       "A05:2021",
		CWE:         "CWE-79",
		Description: "Inline script blocks without a nonce defeat CSP-based XSS mitigation",
		Remediation: "Move scripts to external files or add per-response nonces referenced by the CSP",
	},

	// =========================================================================
	// Injection (dynamic)
	// =========================================================================
	{
		ID:          RuleSQLIError,
		Type:        "SQL Error Disclosure",
		Severity:    datatypes.SeverityHigh,
		Confidence:  datatypes.ConfidenceMedium,
		OWASP:       "A03:2021",
		CWE:         "CWE-89",
		Description: "A syntax-breaking parameter value produced a database error in the response, indicating unsanitized query construction",
		Remediation: "Use parameterized queries and return generic error pages",
		References:  []string{"https://owasp.org/www-community/attacks/SQL_Injection"},
	},
	{
		ID:          RulePathTraversal,
		Type:        "Path Traversal",
		Severity:    datatypes.SeverityCritical,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A01:2021",
		CWE:         "CWE-22",
		Description: "A file-access parameter returned filesystem content for a traversal payload",
		Remediation: "Resolve paths against an allow-list root and reject any path containing traversal sequences",
	},
	{
		ID:          RuleCSRFMissingToken,
		Type:        "Missing CSRF Protection",
		Severity:    datatypes.SeverityMedium,
		Confidence:  datatypes.ConfidenceMedium,
		OWASP:       "A01:2021",
		CWE:         "CWE-352",
		Description: "A state-changing form carries no anti-forgery token",
		Remediation: "Embed a per-session CSRF token in every state-changing form and verify it server-side",
	},

	// =========================================================================
	// SEC family (headers, transport, CSP, secrets)
	// =========================================================================
	{
		ID:          RuleSECMissingCSP,
		Type:        "Missing Content Security Policy",
		Severity:    datatypes.SeverityMedium,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A05:2021",
		CWE:         "CWE-1021",
		Description: "No Content-Security-Policy header or meta tag is present",
		Remediation: "Deploy a restrictive CSP with default-src 'none' and explicit allowances",
	},
	{
		ID:          RuleSECWeakCSP,
		Type:        "Weak Content Security Policy",
		Severity:    datatypes.SeverityMedium,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A05:2021",
		CWE:         "CWE-1021",
		Description: "The Content-Security-Policy permits unsafe-inline or unsafe-eval",
		Remediation: "Replace unsafe-inline with nonces or hashes and remove unsafe-eval",
	},
	{
		ID:          RuleSECInsecureProto,
		Type:        "Insecure Transport Protocol",
		Severity:    datatypes.SeverityHigh,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A02:2021",
		CWE:         "CWE-319",
		Description: "The target is served over plain HTTP; all traffic is readable and modifiable in transit",
		Remediation: "Serve the site exclusively over HTTPS and enable HSTS",
	},
	{
		ID:          RuleSECCORSWildcard,
		Type:        "Permissive CORS Policy",
		Severity:    datatypes.SeverityCritical,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A05:2021",
		CWE:         "CWE-942",
		Description: "Access-Control-Allow-Origin: * combined with credentials exposes authenticated responses to any origin",
		Remediation: "Reflect only an allow-list of origins and never combine a wildcard with credentials",
	},
	{
		ID:          RuleSECExternalScript,
		Type:        "Cross-Origin Script Inclusion",
		Severity:    datatypes.SeverityMedium,
		Confidence:  datatypes.ConfidenceMedium,
		OWASP:       "A08:2021",
		CWE:         "CWE-830",
		Description: "The page loads executable script from a third-party origin without integrity protection",
		Remediation: "Add Subresource Integrity attributes or self-host third-party scripts",
	},
	{
		ID:          RuleSECHardcodedKey,
		Type:        "Hardcoded Secret",
		Severity:    datatypes.SeverityCritical,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A02:2021",
		CWE:         "CWE-798",
		Description: "A credential-shaped literal (API key, token) is embedded in client-delivered source",
		Remediation: "Revoke the exposed credential and move secrets to server-side configuration",
	},
	{
		ID:          RuleSECInsecureCookie,
		Type:        "Insecure Cookie Assignment",
		Severity:    datatypes.SeverityMedium,
		Confidence:  datatypes.ConfidenceMedium,
		OWASP:       "A05:2021",
		CWE:         "CWE-1004",
		Description: "JavaScript sets a cookie without Secure/SameSite attributes",
		Remediation: "Set cookies server-side with Secure, HttpOnly, and SameSite attributes",
	},

	// =========================================================================
	// AUTH family
	// =========================================================================
	{
		ID:          RuleAuthCookieSecure,
		Type:        "Session Cookie Missing Secure Flag",
		Severity:    datatypes.SeverityHigh,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A07:2021",
		CWE:         "CWE-614",
		Description: "A session cookie on an HTTPS site lacks the Secure attribute and can leak over plain HTTP",
		Remediation: "Add the Secure attribute to all session cookies",
	},
	{
		ID:          RuleAuthCookieHTTP,
		Type:        "Session Cookie Missing HttpOnly",
		Severity:    datatypes.SeverityMedium,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A07:2021",
		CWE:         "CWE-1004",
		Description: "A session cookie is readable from JavaScript, amplifying any XSS into session theft",
		Remediation: "Add the HttpOnly attribute to all session cookies",
	},
	{
		ID:          RuleAuthSameSite,
		Type:        "Session Cookie SameSite Misconfiguration",
		Severity:    datatypes.SeverityMedium,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A07:2021",
		CWE:         "CWE-1275",
		Description: "A session cookie lacks SameSite, or sets SameSite=None without Secure",
		Remediation: "Set SameSite=Lax or Strict; SameSite=None requires the Secure attribute",
	},
	{
		ID:          RuleAuthWeakToken,
		Type:        "Weak Session Token",
		Severity:    datatypes.SeverityHigh,
		Confidence:  datatypes.ConfidenceMedium,
		OWASP:       "A07:2021",
		CWE:         "CWE-331",
		Description: "The session token is too short to resist guessing",
		Remediation: "Issue session tokens with at least 128 bits of entropy",
	},
	{
		ID:          RuleAuthBypassDirect,
		Type:        "Authentication Bypass",
		Severity:    datatypes.SeverityCritical,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A01:2021",
		CWE:         "CWE-306",
		Description: "A protected page is served to unauthenticated requests",
		Remediation: "Enforce authentication middleware on every protected route",
	},
	{
		ID:          RuleAuthTamperedToken,
		Type:        "Tampered Session Accepted",
		Severity:    datatypes.SeverityHigh,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A07:2021",
		CWE:         "CWE-565",
		Description: "A protected page accepted a modified session token",
		Remediation: "Validate session tokens server-side against the session store on every request",
	},
	{
		ID:          RuleAuthBypassParam,
		Type:        "Parameter-Based Auth Bypass",
		Severity:    datatypes.SeverityCritical,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A01:2021",
		CWE:         "CWE-639",
		Description: "A query parameter grants access to a protected page without authentication",
		Remediation: "Derive authorization exclusively from server-side session state, never from request parameters",
	},

	// =========================================================================
	// DEP family
	// =========================================================================
	{
		ID:          RuleDepVulnerable,
		Type:        "Vulnerable Dependency",
		Severity:    datatypes.SeverityHigh,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A06:2021",
		CWE:         "CWE-1395",
		Description: "A declared dependency version falls inside a known-vulnerable range",
		Remediation: "Upgrade to the patched version listed in the advisory",
	},
	{
		ID:          RuleDepUnparseable,
		Type:        "Unparseable Dependency Manifest",
		Severity:    datatypes.SeverityLow,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A06:2021",
		CWE:         "CWE-1104",
		Description: "The dependency manifest could not be parsed, so dependency risk is unknown",
		Remediation: "Fix the manifest syntax so dependency auditing can run",
	},

	// =========================================================================
	// FORM family
	// =========================================================================
	{
		ID:          RuleFormInsecure,
		Type:        "Form Submits Over Insecure Transport",
		Severity:    datatypes.SeverityCritical,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A02:2021",
		CWE:         "CWE-319",
		Description: "A form on an HTTPS page posts to an http: action; submitted values cross the network unencrypted",
		Remediation: "Point the form action at an HTTPS endpoint",
	},
	{
		ID:          RuleFormNoAction,
		Type:        "Form Without Action",
		Severity:    datatypes.SeverityLow,
		Confidence:  datatypes.ConfidenceMedium,
		OWASP:       "A04:2021",
		CWE:         "CWE-1007",
		Description: "A form has no action attribute; submission behavior depends on ambient page state",
		Remediation: "Declare an explicit action URL for every form",
	},
	{
		ID:          RuleFormNoValidation,
		Type:        "Input Without Client Validation",
		Severity:    datatypes.SeverityLow,
		Confidence:  datatypes.ConfidenceLow,
		OWASP:       "A04:2021",
		CWE:         "CWE-20",
		Description: "A form input declares no required, pattern, or maxlength constraint",
		Remediation: "Add client-side constraints as a usability layer over server-side validation",
	},

	// =========================================================================
	// EXC family
	// =========================================================================
	{
		ID:          RuleExcStackTrace,
		Type:        "Stack Trace Disclosure",
		Severity:    datatypes.SeverityMedium,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A10:2025",
		CWE:         "CWE-209",
		Description: "The response body contains a language-runtime stack trace",
		Remediation: "Return generic error pages and log stack traces server-side only",
	},
	{
		ID:          RuleExcDebugMode,
		Type:        "Debug Mode Enabled",
		Severity:    datatypes.SeverityHigh,
		Confidence:  datatypes.ConfidenceHigh,
		OWASP:       "A10:2025",
		CWE:         "CWE-489",
		Description: "The response indicates the application is running with debug features enabled",
		Remediation: "Disable debug mode in production deployments",
	},
	{
		ID:          RuleExcSensitive,
		Type:        "Sensitive Error Detail",
		Severity:    datatypes.SeverityHigh,
		Confidence:  datatypes.ConfidenceMedium,
		OWASP:       "A10:2025",
		CWE:         "CWE-209",
		Description: "An error response leaks internal details such as connection strings or filesystem paths",
		Remediation: "Strip internal identifiers from user-facing error output",
	},
}
