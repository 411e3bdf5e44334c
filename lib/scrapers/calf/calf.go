// Package calf scrapes the CALF cooperative customer portal: a GeneXus
// web app gated behind a reCAPTCHA login. Scraping is browser-driven
// because the portal has no API and the login challenge needs a real
// Chromium instance; extraction itself happens over the rendered HTML
// with goquery.
//
// All methods are serial by design: every step depends on the DOM state
// left behind by the previous navigation.
package calf

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/calf")

// DefaultBaseURL is the portal's anonymous login entry point.
const DefaultBaseURL = "https://sixon.com.ar/PortalClientes_CALF_PROD/com.portalclientes.portalloginsinregistro"

// IdentityType is the kind of document used to log into the portal.
type IdentityType string

const (
	IdentityDNI   IdentityType = "DNI"
	IdentityCUIT  IdentityType = "CUIT"
	IdentitySocio IdentityType = "SOCIO"
)

// FormValue returns the value the portal's vTIPOID select expects.
func (t IdentityType) FormValue() (string, bool) {
	switch t {
	case IdentityDNI:
		return "1", true
	case IdentityCUIT:
		return "2", true
	case IdentitySocio:
		return "4", true
	}
	return "", false
}

// Identity is the login credential pair. Immutable input for the run;
// also used to derive output file names.
type Identity struct {
	Type   IdentityType `json:"id_type"`
	Number string       `json:"id_number"`
}

var ErrMissingIdentity = fmt.Errorf("missing or malformed identity")

// Validate fails fast before any navigation happens.
func (id Identity) Validate() error {
	if _, ok := id.Type.FormValue(); !ok {
		return fmt.Errorf("%w: unknown id type %q", ErrMissingIdentity, string(id.Type))
	}
	if id.Number == "" {
		return fmt.Errorf("%w: empty id number", ErrMissingIdentity)
	}
	return nil
}

// Person is the account holder as shown on the authenticated page.
// A non-empty DisplayName implies the login succeeded.
type Person struct {
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	PersonID    string `json:"person_id"`
}

// AccountSummary is one row of the post-login account listing.
// AccountNumber is the natural key, unique within a report.
type AccountSummary struct {
	AccountNumber    int    `json:"account_number"`
	ServiceType      string `json:"service_type"`
	Address          string `json:"address"`
	ConnectionStatus string `json:"connection_status"`
}

// InvoiceStatus classifies an invoice row.
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "Pending"
	InvoicePaid    InvoiceStatus = "Paid"
	InvoiceOther   InvoiceStatus = "Other"
)

// InvoiceLine is one row of an account's invoice table.
type InvoiceLine struct {
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       time.Time       `json:"due_date"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	Status        InvoiceStatus   `json:"status"`
}

// AccountDetail is the parsed detail view of a single account.
// PendingCount and PendingTotal are derived from Invoices, never from
// the page's own header figures; the report builder recomputes them the
// same way and treats its result as authoritative.
type AccountDetail struct {
	AccountNumber  int             `json:"account_number"`
	AssociateLabel string          `json:"associate_label"`
	FullAddress    string          `json:"full_address"`
	DebtAsOfDate   string          `json:"debt_as_of_date"`
	PendingCount   int             `json:"invoice_count_pending"`
	PendingTotal   decimal.Decimal `json:"invoice_total_pending"`
	Invoices       []InvoiceLine   `json:"invoices"`
	// RawFields holds labeled values the detail page exposed but this
	// scraper has no typed slot for. Partial data beats dropped data.
	RawFields map[string]string `json:"raw_fields,omitempty"`
}

// NavigationError is any failure reaching or recognizing a portal page.
// It is fatal for the run and never retried automatically: a retry
// usually burns another captcha resolution, so that call is the
// operator's to make.
type NavigationError struct {
	Stage        string
	ArtifactPath string
	Err          error
}

func (e *NavigationError) Error() string {
	if e.ArtifactPath != "" {
		return fmt.Sprintf("navigation failed at %s (debug artifacts: %s): %v", e.Stage, e.ArtifactPath, e.Err)
	}
	return fmt.Sprintf("navigation failed at %s: %v", e.Stage, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// DetailParseError isolates a single account's detail failure, whether
// opening, reading or parsing the page, so the rest of the report can
// still complete. Raw carries whatever labeled values were salvaged
// before the parse gave up.
type DetailParseError struct {
	AccountNumber int
	ArtifactPath  string
	Raw           map[string]string
	Err           error
}

func (e *DetailParseError) Error() string {
	if e.ArtifactPath != "" {
		return fmt.Sprintf("failed to parse detail of account %d (debug artifacts: %s): %v", e.AccountNumber, e.ArtifactPath, e.Err)
	}
	return fmt.Sprintf("failed to parse detail of account %d: %v", e.AccountNumber, e.Err)
}

func (e *DetailParseError) Unwrap() error { return e.Err }
