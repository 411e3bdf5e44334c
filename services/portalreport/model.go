// Package portalreport assembles scraped portal data into a report and
// renders it to the console, CSV, and JSON. The builder is the single
// place where displayed totals are reconciled against invoice rows.
package portalreport

import (
	"time"

	"calfscrape/lib/scrapers/calf"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/portalreport")

// Report is the complete output of one scraping run.
type Report struct {
	Person      calf.Person           `json:"person"`
	GeneratedAt time.Time             `json:"generated_at"`
	Accounts    []calf.AccountSummary `json:"accounts"`
	// Details is keyed by account number; accounts whose detail fetch
	// failed are present in Accounts but absent here.
	Details map[int]calf.AccountDetail `json:"details"`
	// Failures maps account numbers to the error text of their failed
	// detail fetches.
	Failures map[int]string `json:"failures,omitempty"`
}
