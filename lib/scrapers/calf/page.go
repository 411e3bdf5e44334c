package calf

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// portalPage adapts a live rod page to the ChallengePage interface.
type portalPage struct {
	page     *rod.Page
	debugDir string
}

const (
	selIDType     = "vTIPOID"
	selIDNumber   = "vNROID"
	selLoginBtn   = "LOGIN"
	selCaptchaOut = "g-recaptcha-response"
)

func (p *portalPage) FillIdentity(ctx context.Context, identity Identity) error {
	formValue, ok := identity.Type.FormValue()
	if !ok {
		return fmt.Errorf("%w: unknown id type %q", ErrMissingIdentity, string(identity.Type))
	}

	// The GeneXus runtime only picks values up from real DOM mutation
	// events, so both fields are written and their events dispatched
	// from inside the page.
	_, err := p.page.Context(ctx).Eval(`(tipo, nro) => {
		const sel = document.getElementById("`+selIDType+`");
		if (!sel) throw new Error("id type select not found");
		sel.value = tipo;
		sel.dispatchEvent(new Event("change", { bubbles: true }));

		const input = document.getElementById("`+selIDNumber+`");
		if (!input) throw new Error("id number input not found");
		input.value = nro;
		input.dispatchEvent(new Event("input", { bubbles: true }));
		input.dispatchEvent(new Event("change", { bubbles: true }));
	}`, formValue, identity.Number)
	if err != nil {
		return fmt.Errorf("failed to inject identity fields: %w", err)
	}
	return nil
}

func (p *portalPage) TriggerCheckbox(ctx context.Context) error {
	frameEl, err := p.page.Context(ctx).Timeout(10 * time.Second).Element(`iframe[title="reCAPTCHA"]`)
	if err != nil {
		return fmt.Errorf("challenge frame not found: %w", err)
	}
	frame, err := frameEl.Frame()
	if err != nil {
		return fmt.Errorf("failed to enter challenge frame: %w", err)
	}
	anchor, err := frame.Timeout(10 * time.Second).Element("#recaptcha-anchor")
	if err != nil {
		return fmt.Errorf("challenge checkbox not found: %w", err)
	}
	if err := anchor.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click challenge checkbox: %w", err)
	}
	return nil
}

func (p *portalPage) ResponseToken(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => {
		const el = document.getElementById("` + selCaptchaOut + `");
		return el ? el.value : "";
	}`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (p *portalPage) SaveDebugArtifacts(ctx context.Context, stage string) (string, error) {
	return saveArtifacts(ctx, p.page, p.debugDir, stage)
}

// bodyText returns the rendered text of the page body.
func bodyText(ctx context.Context, page *rod.Page) (string, error) {
	body, err := page.Context(ctx).Timeout(10 * time.Second).Element("body")
	if err != nil {
		return "", err
	}
	return body.Text()
}
