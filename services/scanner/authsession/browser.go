// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package authsession implements the headless login flow and the
// authenticated-session checks.
//
// The browser is abstracted as a capability interface so the login engine
// can be tested without Chrome; the chromedp backend is the production
// implementation. Safety contract: one login attempt per scan, isolated
// browser storage, and credentials never logged or persisted.
package authsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// =============================================================================
// Browser Capability
// =============================================================================

// Cookie is a browser cookie captured after login.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// Browser is the headless-automation capability the login engine needs.
//
// Implementations must use isolated storage per instance and close every
// underlying resource in Close, on every exit path.
type Browser interface {
	Goto(ctx context.Context, url string, timeout time.Duration) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	WaitForURL(ctx context.Context, url string, timeout time.Duration) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Cookies(ctx context.Context) ([]Cookie, error)
	Close() error
}

// =============================================================================
// chromedp Backend
// =============================================================================

// chromeBrowser drives a headless Chrome through chromedp.
type chromeBrowser struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

var _ Browser = (*chromeBrowser)(nil)

// scannerUserAgent identifies automated logins to the target.
const scannerUserAgent = "WebSecScan/1.0 (+https://github.com/Pranavraut033/WebSecScan)"

// NewChromeBrowser launches an isolated headless Chrome context with a
// fixed viewport and the scanner user agent. Each call gets fresh storage;
// nothing is shared between scans.
func NewChromeBrowser(parent context.Context) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("incognito", true),
		chromedp.WindowSize(1280, 800),
		chromedp.UserAgent(scannerUserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so launch failures surface here
	// rather than inside the login flow.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &chromeBrowser{ctx: browserCtx, cancelCtx: cancelCtx, cancelAlloc: cancelAlloc}, nil
}

func (b *chromeBrowser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := b.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *chromeBrowser) Goto(ctx context.Context, url string, timeout time.Duration) error {
	return b.run(ctx, timeout, chromedp.Navigate(url))
}

func (b *chromeBrowser) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return b.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (b *chromeBrowser) WaitForURL(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var current string
		if err := b.run(ctx, time.Second, chromedp.Location(&current)); err != nil {
			return err
		}
		if strings.HasPrefix(current, url) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for navigation to %s (at %s)", url, current)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (b *chromeBrowser) Fill(ctx context.Context, selector, value string) error {
	return b.run(ctx, 5*time.Second,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery))
}

func (b *chromeBrowser) Click(ctx context.Context, selector string) error {
	return b.run(ctx, 5*time.Second, chromedp.Click(selector, chromedp.ByQuery))
}

func (b *chromeBrowser) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := b.run(ctx, 5*time.Second, chromedp.ActionFunc(func(actionCtx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(actionCtx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: string(c.SameSite),
		})
	}
	return cookies, nil
}

func (b *chromeBrowser) Close() error {
	b.cancelCtx()
	b.cancelAlloc()
	return nil
}

// ErrBrowserUnavailable is returned by engines constructed without a
// browser backend.
var ErrBrowserUnavailable = errors.New("no browser backend available")
