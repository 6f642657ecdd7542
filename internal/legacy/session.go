// Package legacy talks to the association's old HTML-rendered backend: a
// cookie/CSRF form-POST session whose profile and family pages are scraped
// rather than served as JSON. Markup drifts between deployments, so every
// field is read from several candidate DOM locations and absent fields are
// tolerated.
package legacy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"memberhub/internal/status"
)

type Session struct {
	baseURL  string
	username string
	password string

	// hc carries the session cookie jar.
	hc *http.Client
}

func NewSession(baseURL, username, password string) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("legacy.NewSession: %w", err)
	}
	return &Session{
		baseURL:  baseURL,
		username: username,
		password: password,
		hc: &http.Client{
			Jar:     jar,
			Timeout: 15 * time.Second,
		},
	}, nil
}

// Login fetches the login form, lifts the CSRF token out of it and posts the
// credentials. The session cookie lands in the jar.
func (s *Session) Login(ctx context.Context) error {
	doc, err := s.getDoc(ctx, "/login")
	if err != nil {
		return fmt.Errorf("legacy.Login: %w", err)
	}

	form := url.Values{
		"username": []string{s.username},
		"password": []string{s.password},
	}
	if token := csrfToken(doc); token != "" {
		form.Set("_token", token)
	}

	reply, err := s.postForm(ctx, "/login", form)
	if err != nil {
		return fmt.Errorf("legacy.Login: %w", err)
	}
	if isLoginPage(reply) {
		return fmt.Errorf("legacy.Login: credentials rejected: %w", status.ErrUnauthorized)
	}
	return nil
}

// csrfToken tries the hidden form input first, then the meta tag some pages
// carry instead.
func csrfToken(doc *goquery.Document) string {
	for _, sel := range []string{
		`input[name="_token"]`,
		`input[name="csrf_token"]`,
		`input[name="__RequestVerificationToken"]`,
	} {
		if v, ok := doc.Find(sel).First().Attr("value"); ok && v != "" {
			return v
		}
	}
	if v, ok := doc.Find(`meta[name="csrf-token"]`).First().Attr("content"); ok {
		return v
	}
	return ""
}

func isLoginPage(doc *goquery.Document) bool {
	return doc.Find(`form input[name="password"]`).Length() > 0
}

// getPage fetches a page, transparently re-logging in once when the session
// has expired and the backend bounced us to the login form.
func (s *Session) getPage(ctx context.Context, path string) (*goquery.Document, error) {
	doc, err := s.getDoc(ctx, path)
	if err != nil {
		return nil, err
	}
	if isLoginPage(doc) {
		slog.Info("legacy: session expired, re-authenticating", "path", path)
		if err := s.Login(ctx); err != nil {
			return nil, err
		}
		doc, err = s.getDoc(ctx, path)
		if err != nil {
			return nil, err
		}
		if isLoginPage(doc) {
			return nil, fmt.Errorf("legacy: still on login page after re-auth: %w", status.ErrUnauthorized)
		}
	}
	return doc, nil
}

func (s *Session) getDoc(ctx context.Context, path string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("http.NewReq: %w", err)
	}

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http.Do: %w: %w", status.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rbody, _ := io.ReadAll(resp.Body)
		return nil, status.ServerError("legacy GET "+path, resp.StatusCode, rbody)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w: %w", path, status.ErrDecode, err)
	}
	return doc, nil
}

func (s *Session) postForm(ctx context.Context, path string, form url.Values) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http.Do: %w: %w", status.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rbody, _ := io.ReadAll(resp.Body)
		return nil, status.ServerError("legacy POST "+path, resp.StatusCode, rbody)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w: %w", path, status.ErrDecode, err)
	}
	return doc, nil
}
