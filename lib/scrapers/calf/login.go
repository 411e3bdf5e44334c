package calf

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"calfscrape/lib/browser"

	"github.com/go-resty/resty/v2"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// text the authenticated landing page always shows
const loggedInMarker = "Cuentas de la persona"

type ClientOptions struct {
	// BaseUrl defaults to DefaultBaseURL.
	BaseUrl string
	// Browser must be an open handle; the client does not close it.
	Browser *browser.Browser
	// DebugDir receives screenshots and page snapshots on failures.
	DebugDir string
	Challenge ChallengeConfig
	// Clock defaults to the system clock.
	Clock Clock
}

// Client drives the portal through one authenticated run.
type Client struct {
	baseURL   string
	browser   *browser.Browser
	debugDir  string
	challenge ChallengeConfig
	clock     Clock
	probe     *resty.Client
}

func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseUrl
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}
	return &Client{
		baseURL:   baseURL,
		browser:   opts.Browser,
		debugDir:  opts.DebugDir,
		challenge: opts.Challenge,
		clock:     clock,
		probe:     newProbeClient(),
	}
}

// Session is an authenticated browser context. It borrows the client's
// page for the run and must not outlive the browser handle.
type Session struct {
	Person Person

	client *Client
	page   *rod.Page
	// accounts is the last listing extraction, kept so detail navigation
	// can fall back to a row position when a row's number does not match.
	accounts []AccountSummary
}

// rowIndex is the account's position in the last extracted listing, or
// -1 when unknown.
func (s *Session) rowIndex(accountNumber int) int {
	for i, account := range s.accounts {
		if account.AccountNumber == accountNumber {
			return i
		}
	}
	return -1
}

// Login validates the identity, navigates to the portal, resolves the
// bot challenge and submits the login form. Navigation failures are not
// retried here: a retry typically requires a fresh captcha resolution,
// which is the operator's call.
func (c *Client) Login(ctx context.Context, identity Identity) (*Session, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	if err := identity.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity rejected before navigation")
		return nil, err
	}
	span.SetAttributes(attribute.String("id_type", string(identity.Type)))

	if err := c.preflight(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "portal unreachable")
		return nil, err
	}

	page, err := c.browser.Rod.Page(proto.TargetCreateTarget{URL: c.baseURL})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open portal page")
		return nil, &NavigationError{Stage: "open", Err: err}
	}
	if err := page.Context(ctx).Timeout(30 * time.Second).WaitLoad(); err != nil {
		artifacts, _ := saveArtifacts(ctx, page, c.debugDir, "load_timeout")
		span.RecordError(err)
		span.SetStatus(codes.Error, "portal page never loaded")
		return nil, &NavigationError{Stage: "load", ArtifactPath: artifacts, Err: err}
	}

	// the login form is rendered client-side, wait for it
	if _, err := page.Context(ctx).Timeout(30 * time.Second).Element("#" + selIDType); err != nil {
		artifacts, _ := saveArtifacts(ctx, page, c.debugDir, "login_form_missing")
		span.RecordError(err)
		span.SetStatus(codes.Error, "login form never appeared")
		return nil, &NavigationError{Stage: "login_form", ArtifactPath: artifacts, Err: err}
	}
	slog.InfoContext(ctx, "login form loaded", "id_type", identity.Type, "id_number", identity.Number)

	solver := NewSolver(&portalPage{page: page, debugDir: c.debugDir}, c.challenge, c.clock)
	if err := solver.Solve(ctx, identity); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "challenge not resolved")
		return nil, err
	}

	// the login button is also driven by the client framework; click it
	// from inside the page like everything else
	if _, err := page.Context(ctx).Eval(`() => {
		const btn = document.getElementById("` + selLoginBtn + `");
		if (!btn) throw new Error("login button not found");
		btn.click();
	}`); err != nil {
		artifacts, _ := saveArtifacts(ctx, page, c.debugDir, "login_click")
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit login")
		return nil, &NavigationError{Stage: "submit", ArtifactPath: artifacts, Err: err}
	}

	if err := c.awaitLanding(ctx, page); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "post-login page not reached")
		return nil, err
	}

	text, err := bodyText(ctx, page)
	if err != nil {
		return nil, &NavigationError{Stage: "landing", Err: err}
	}
	person := extractPerson(text)
	slog.InfoContext(ctx, "login successful", "person", person.DisplayName)

	return &Session{Person: person, client: c, page: page}, nil
}

// awaitLanding polls for the authenticated marker after the login click.
// The portal renders the landing view asynchronously, so this is a
// bounded text probe rather than a navigation wait.
func (c *Client) awaitLanding(ctx context.Context, page *rod.Page) error {
	const attempts = 20

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return &NavigationError{Stage: "landing", Err: err}
		}

		text, err := bodyText(ctx, page)
		if err == nil {
			if strings.Contains(text, loggedInMarker) {
				return nil
			}
			if strings.Contains(text, "Error") && strings.Contains(text, "robot") {
				artifacts, _ := saveArtifacts(ctx, page, c.debugDir, "robot_detected")
				return &NavigationError{
					Stage:        "landing",
					ArtifactPath: artifacts,
					Err:          fmt.Errorf("portal flagged the session as a robot"),
				}
			}
		}
		c.clock.Sleep(time.Second)
	}

	// last resort: the landing page may use different copy, but the URL
	// always changes away from the login route on success
	info, err := page.Info()
	if err == nil && !strings.Contains(strings.ToLower(info.URL), "portalloginsinregistro") {
		return nil
	}

	artifacts, _ := saveArtifacts(ctx, page, c.debugDir, "login_failed")
	return &NavigationError{
		Stage:        "landing",
		ArtifactPath: artifacts,
		Err:          fmt.Errorf("post-login page never appeared"),
	}
}

var (
	usernameRe = regexp.MustCompile(`(\d{10,})`)
	numberRe   = regexp.MustCompile(`(\d+)`)
	nameRe     = regexp.MustCompile(`(?i)^.*NOMBRE\s*`)
)

// extractPerson pulls the account holder's identification out of the
// landing page text. The layout wobbles between putting values on the
// label's line and on the next one, so both are tried.
func extractPerson(text string) Person {
	var person Person
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		clean := strings.TrimSpace(line)
		upper := strings.ToUpper(clean)

		if strings.Contains(upper, "USUARIO") && person.Username == "" {
			if m := usernameRe.FindString(clean); m != "" {
				person.Username = m
			} else if i+1 < len(lines) {
				person.Username = usernameRe.FindString(lines[i+1])
			}
		}

		if strings.Contains(upper, "PERSONA") && !strings.Contains(upper, "CUENTAS") && person.PersonID == "" {
			withoutUser := strings.ReplaceAll(clean, person.Username, "")
			if m := numberRe.FindString(withoutUser); m != "" {
				person.PersonID = m
			} else if i+1 < len(lines) {
				person.PersonID = numberRe.FindString(lines[i+1])
			}
		}

		if strings.Contains(upper, "NOMBRE") && person.DisplayName == "" {
			rest := nameRe.ReplaceAllString(clean, "")
			if strings.TrimSpace(rest) != "" {
				person.DisplayName = strings.TrimSpace(rest)
			} else if i+1 < len(lines) {
				person.DisplayName = strings.TrimSpace(lines[i+1])
			}
		}
	}

	return person
}
