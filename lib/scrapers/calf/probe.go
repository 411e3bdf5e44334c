package calf

import (
	"context"
	"fmt"
	"time"

	"calfscrape/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

func newProbeClient() *resty.Client {
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", browserUserAgent)
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "scrapers/calf/http")
	return client
}

// preflight checks that the portal answers at all before a browser is
// launched. An unreachable host should fail here, not after a captcha
// solve has been spent on it.
func (c *Client) preflight(ctx context.Context) error {
	res, err := c.probe.R().
		SetContext(ctx).
		Get(c.baseURL)
	if err != nil {
		return &NavigationError{Stage: "preflight", Err: err}
	}
	if res.StatusCode() >= 500 {
		return &NavigationError{
			Stage: "preflight",
			Err:   fmt.Errorf("portal answered with status %d", res.StatusCode()),
		}
	}
	return nil
}
