package portalreport

import (
	"context"
	"log/slog"
	"time"

	"calfscrape/lib/scrapers/calf"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// Build assembles a report from scrape results. Pending counts and
// totals in each detail are recomputed from the invoice rows; when the
// scraped display values disagree, the computed values win and the
// discrepancy is logged rather than failing the run.
func Build(
	ctx context.Context,
	person calf.Person,
	accounts []calf.AccountSummary,
	details map[int]calf.AccountDetail,
	failures map[int]string,
) Report {
	ctx, span := tracer.Start(ctx, "Build")
	defer span.End()
	span.SetAttributes(
		attribute.Int("accounts", len(accounts)),
		attribute.Int("details", len(details)),
	)

	reconciled := make(map[int]calf.AccountDetail, len(details))
	for number, detail := range details {
		reconciled[number] = reconcile(ctx, detail)
	}

	return Report{
		Person:      person,
		GeneratedAt: time.Now(),
		Accounts:    accounts,
		Details:     reconciled,
		Failures:    failures,
	}
}

// reconcile recomputes the pending count and total from the invoice
// rows, rounded to cents.
func reconcile(ctx context.Context, detail calf.AccountDetail) calf.AccountDetail {
	count := 0
	total := decimal.Zero
	for _, inv := range detail.Invoices {
		if inv.Status == calf.InvoicePending {
			count++
			total = total.Add(inv.Amount)
		}
	}
	total = total.Round(2)

	if detail.PendingCount != count || !detail.PendingTotal.Round(2).Equal(total) {
		slog.WarnContext(ctx, "reconciliation mismatch, using computed values",
			"account_number", detail.AccountNumber,
			"displayed_count", detail.PendingCount,
			"computed_count", count,
			"displayed_total", detail.PendingTotal,
			"computed_total", total,
		)
	}

	detail.PendingCount = count
	detail.PendingTotal = total
	return detail
}
