package portalreport

import (
	"context"
	"log/slog"

	"calfscrape/lib/scrapers/calf"

	"go.opentelemetry.io/otel/attribute"
)

// DetailFetcher fetches one account's detail view. In production this is
// the scraper session; tests substitute a function.
type DetailFetcher func(ctx context.Context, account calf.AccountSummary) (*calf.AccountDetail, error)

// Collect fetches every account's detail, isolating failures per
// account: one bad detail page is recorded as a failure and never
// discards the details already fetched for the other accounts. Only
// context cancellation stops the sweep early.
func Collect(
	ctx context.Context,
	accounts []calf.AccountSummary,
	fetch DetailFetcher,
) (map[int]calf.AccountDetail, map[int]string) {
	ctx, span := tracer.Start(ctx, "Collect")
	defer span.End()

	details := make(map[int]calf.AccountDetail, len(accounts))
	failures := map[int]string{}

	for _, account := range accounts {
		if ctx.Err() != nil {
			break
		}
		detail, err := fetch(ctx, account)
		if err != nil {
			slog.WarnContext(ctx, "skipping account after detail failure",
				"account_number", account.AccountNumber, "err", err)
			failures[account.AccountNumber] = err.Error()
			continue
		}
		details[account.AccountNumber] = *detail
	}

	span.SetAttributes(
		attribute.Int("details", len(details)),
		attribute.Int("failures", len(failures)),
	)
	return details, failures
}
