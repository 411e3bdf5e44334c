package calf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"calfscrape/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/go-rod/rod/lib/proto"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FetchDetail opens one account's detail view, parses it and navigates
// back to the listing. Every failure scoped to this account (unclickable
// row, unreadable page, parse miss) is returned as *DetailParseError and
// leaves the session usable for the remaining accounts.
func (s *Session) FetchDetail(ctx context.Context, account AccountSummary) (*AccountDetail, error) {
	ctx, span := tracer.Start(ctx, "session:FetchDetail")
	defer span.End()
	span.SetAttributes(attribute.Int("account_number", account.AccountNumber))

	if err := s.openDetail(ctx, account.AccountNumber); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open account detail")
		return nil, err
	}
	// navigate back even when the parse fails, the listing must stay
	// reachable for the remaining accounts
	defer func() {
		if err := s.backToListing(ctx); err != nil {
			slog.WarnContext(ctx, "failed to return to account listing",
				"account_number", account.AccountNumber, "err", err)
		}
	}()

	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		artifacts, _ := saveArtifacts(ctx, s.page, s.client.debugDir, "detail_read")
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read detail page")
		return nil, &DetailParseError{AccountNumber: account.AccountNumber, ArtifactPath: artifacts, Err: err}
	}

	detail, err := parseAccountDetail(html, account.AccountNumber)
	if err != nil {
		var parseErr *DetailParseError
		if errors.As(err, &parseErr) {
			artifacts, _ := saveArtifacts(ctx, s.page, s.client.debugDir,
				fmt.Sprintf("detail_%d", account.AccountNumber))
			parseErr.ArtifactPath = artifacts
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse detail page")
		return nil, err
	}

	slog.InfoContext(ctx, "account detail extracted",
		"account_number", account.AccountNumber, "invoices", len(detail.Invoices))
	return detail, nil
}

// openDetail clicks into the detail view for the given account. The row
// is located by its first-cell account number, falling back to the
// account's position among the listing rows; the clickable control
// wobbles between an anchor, an image button and a scripted span, so the
// first one present is used. Failures here are account-scoped: the
// listing is still on screen, so the remaining accounts stay fetchable.
func (s *Session) openDetail(ctx context.Context, accountNumber int) error {
	res, err := s.page.Context(ctx).Eval(`(nro, idx) => {
		const rows = Array.from(document.querySelectorAll("table tr")).filter(r => {
			const cell = r.querySelector("td");
			return cell && /^\d+$/.test(cell.innerText.trim());
		});
		let row = rows.find(r => r.querySelector("td").innerText.trim() === nro);
		if (!row && idx >= 0 && idx < rows.length) row = rows[idx];
		if (!row) return false;
		const target = row.querySelector(
			"a, input[type=image], input[type=button], img[onclick], span[onclick]");
		if (!target) return false;
		target.click();
		return true;
	}`, strconv.Itoa(accountNumber), s.rowIndex(accountNumber))
	if err != nil {
		artifacts, _ := saveArtifacts(ctx, s.page, s.client.debugDir, "detail_open")
		return &DetailParseError{AccountNumber: accountNumber, ArtifactPath: artifacts, Err: err}
	}
	if !res.Value.Bool() {
		artifacts, _ := saveArtifacts(ctx, s.page, s.client.debugDir, "detail_open")
		return &DetailParseError{
			AccountNumber: accountNumber,
			ArtifactPath:  artifacts,
			Err:           fmt.Errorf("no clickable row in the account listing"),
		}
	}

	if err := s.page.Context(ctx).Timeout(15 * time.Second).WaitLoad(); err != nil {
		slog.WarnContext(ctx, "detail page load wait failed, continuing", "err", err)
	}
	s.client.clock.Sleep(time.Second)
	return nil
}

// backToListing returns to the account listing via the page's own
// "Volver" link, falling back to browser history.
func (s *Session) backToListing(ctx context.Context) error {
	link, err := s.page.Context(ctx).Timeout(5*time.Second).ElementR("a", "/Volver/i")
	if err == nil {
		if err := link.Click(proto.InputMouseButtonLeft, 1); err == nil {
			if err := s.awaitListing(ctx); err == nil {
				return nil
			}
		}
	}

	if err := s.page.Context(ctx).NavigateBack(); err != nil {
		return &NavigationError{Stage: "detail_back", Err: err}
	}
	return s.awaitListing(ctx)
}

func (s *Session) awaitListing(ctx context.Context) error {
	for i := 0; i < 10; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := bodyText(ctx, s.page)
		if err == nil && strings.Contains(text, loggedInMarker) {
			return nil
		}
		s.client.clock.Sleep(time.Second)
	}
	return &NavigationError{Stage: "detail_back", Err: fmt.Errorf("account listing never reappeared")}
}

// labeled fields the detail page is known to expose, mapped to their
// typed slots; everything else labeled lands in RawFields
var labelRes = []struct {
	key string
	re  *regexp.Regexp
}{
	{"asociado", regexp.MustCompile(`(?i)asociado\s*:?\s*(.+)`)},
	{"direccion", regexp.MustCompile(`(?i)(?:direcci[oó]n|domicilio)\s*:?\s*(.+)`)},
	{"deuda_al", regexp.MustCompile(`(?i)deuda\s+al\s*:?\s*([\d/.-]+)`)},
	{"suministro", regexp.MustCompile(`(?i)suministro\s*:?\s*(.+)`)},
	{"medidor", regexp.MustCompile(`(?i)medidor\s*:?\s*(.+)`)},
	{"tarifa", regexp.MustCompile(`(?i)tarifa\s*:?\s*(.+)`)},
	{"localidad", regexp.MustCompile(`(?i)localidad\s*:?\s*(.+)`)},
}

// invoiceHeaders are the canonical column names of the invoice grid.
// Header matching is fuzzy because the portal's copy drifts between
// releases (accents dropped, words abbreviated).
var invoiceHeaders = []string{"emision", "vencimiento", "factura", "importe", "estado"}

const headerSimilarityThreshold = 0.85

var amountRe = regexp.MustCompile(`\$\s*[\d.,]+`)

var dateLayouts = []string{"02/01/2006", "2/1/2006", "02-01-2006"}

// parseAccountDetail extracts the typed detail fields and the invoice
// table out of a rendered detail page. Unrecognized labeled values and
// unrecognized tables are preserved in RawFields rather than dropped.
func parseAccountDetail(html string, accountNumber int) (*AccountDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &DetailParseError{AccountNumber: accountNumber, Err: err}
	}

	detail := &AccountDetail{
		AccountNumber: accountNumber,
		RawFields:     map[string]string{},
	}

	text := doc.Text()
	for _, line := range strings.Split(text, "\n") {
		line = htmlutil.CleanText(line)
		if line == "" {
			continue
		}
		for _, labeled := range labelRes {
			m := labeled.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			value := strings.TrimSpace(m[1])
			switch labeled.key {
			case "asociado":
				if detail.AssociateLabel == "" {
					detail.AssociateLabel = value
				}
			case "direccion":
				if detail.FullAddress == "" {
					detail.FullAddress = value
				}
			case "deuda_al":
				if detail.DebtAsOfDate == "" {
					detail.DebtAsOfDate = value
				}
			default:
				if _, exists := detail.RawFields[labeled.key]; !exists {
					detail.RawFields[labeled.key] = value
				}
			}
		}
	}

	tableCount := 0
	invoiceTableFound := false
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		if tbl.Find("table").Length() > 0 {
			return
		}
		tableCount++
		if !invoiceTableFound && isInvoiceTable(tbl) {
			invoiceTableFound = true
			detail.Invoices = parseInvoiceRows(tbl)
			return
		}
		content := htmlutil.CleanText(tbl.Text())
		if content != "" {
			detail.RawFields[fmt.Sprintf("tabla_%d", tableCount)] = content
		}
	})

	// any currency amounts floating outside recognized structures are
	// worth keeping for manual reconciliation
	if stray := amountRe.FindAllString(text, -1); len(stray) > 0 {
		detail.RawFields["importes_encontrados"] = strings.Join(stray, ", ")
	}

	typedFieldsFound := detail.AssociateLabel != "" || detail.FullAddress != "" || detail.DebtAsOfDate != ""
	if tableCount == 0 && !typedFieldsFound && len(detail.RawFields) == 0 {
		return nil, &DetailParseError{
			AccountNumber: accountNumber,
			Raw:           detail.RawFields,
			Err:           fmt.Errorf("page has no recognizable detail content"),
		}
	}

	detail.PendingCount, detail.PendingTotal = pendingFromInvoices(detail.Invoices)

	return detail, nil
}

// isInvoiceTable fuzzily matches a table's header row against the known
// invoice grid columns. Three of five is enough: some releases merge or
// drop a column.
func isInvoiceTable(tbl *goquery.Selection) bool {
	headers := htmlutil.HeaderTexts(tbl)
	if len(headers) == 0 {
		headers = htmlutil.CellTexts(tbl.Find("tr").First())
	}

	matched := 0
	for _, want := range invoiceHeaders {
		for _, got := range headers {
			sim := matchr.JaroWinkler(normalizeHeader(got), want, false)
			if sim >= headerSimilarityThreshold {
				matched++
				break
			}
		}
	}
	return matched >= 3
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n")

func normalizeHeader(s string) string {
	return accentReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// parseInvoiceRows reads the invoice grid's data rows. Rows that do not
// parse are skipped rather than failing the whole account.
func parseInvoiceRows(tbl *goquery.Selection) []InvoiceLine {
	var invoices []InvoiceLine
	tbl.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := htmlutil.CellTexts(row)
		if len(cells) < 5 {
			return
		}
		issue, ok := parseDate(cells[0])
		if !ok {
			return
		}
		due, _ := parseDate(cells[1])
		amount, err := ParseAmount(cells[3])
		if err != nil {
			return
		}
		invoices = append(invoices, InvoiceLine{
			IssueDate:     issue,
			DueDate:       due,
			InvoiceNumber: cells[2],
			Amount:        amount,
			Status:        classifyStatus(cells[4]),
		})
	})
	return invoices
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func classifyStatus(s string) InvoiceStatus {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "pendiente") || strings.Contains(lower, "impag"):
		return InvoicePending
	case strings.Contains(lower, "pagad") || strings.Contains(lower, "cancelad"):
		return InvoicePaid
	}
	return InvoiceOther
}

func pendingFromInvoices(invoices []InvoiceLine) (int, decimal.Decimal) {
	count := 0
	total := decimal.Zero
	for _, inv := range invoices {
		if inv.Status == InvoicePending {
			count++
			total = total.Add(inv.Amount)
		}
	}
	return count, total.Round(2)
}
