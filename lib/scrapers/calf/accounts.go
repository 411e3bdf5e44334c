package calf

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"calfscrape/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ListAccounts extracts the account listing from the page the login
// landed on. A person with no accounts yields an empty slice, not an
// error.
func (s *Session) ListAccounts(ctx context.Context) ([]AccountSummary, error) {
	ctx, span := tracer.Start(ctx, "session:ListAccounts")
	defer span.End()

	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		artifacts, _ := saveArtifacts(ctx, s.page, s.client.debugDir, "account_list")
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read account listing")
		return nil, &NavigationError{Stage: "account_list", ArtifactPath: artifacts, Err: err}
	}

	accounts, err := parseAccountList(html)
	if err != nil {
		artifacts, _ := saveArtifacts(ctx, s.page, s.client.debugDir, "account_list")
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse account listing")
		return nil, &NavigationError{Stage: "account_list", ArtifactPath: artifacts, Err: err}
	}

	s.accounts = accounts
	span.SetAttributes(attribute.Int("accounts", len(accounts)))
	slog.InfoContext(ctx, "account listing extracted", "accounts", len(accounts))
	return accounts, nil
}

// accountLineRe matches one account in the rendered page text when the
// grid markup is absent: number, service, address, connection status.
var accountLineRe = regexp.MustCompile(
	`(\d+)\s+(Energ[ií]a|Gas|Agua)\s+(.+?)\s+(CONECTADO|DESCONECTADO|ACTIVO|INACTIVO|SUSPENDIDO)`)

// parseAccountList walks every table row with at least four cells and
// keeps the ones that look like account rows. When the grid yields
// nothing it falls back to a regex over the page text, which survives
// markup changes the cell walk does not.
func parseAccountList(html string) ([]AccountSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	accounts := []AccountSummary{}
	seen := map[int]bool{}

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := htmlutil.CellTexts(row)
		if len(cells) < 4 {
			return
		}
		number, err := strconv.Atoi(strings.TrimSpace(cells[0]))
		if err != nil || number == 0 || seen[number] {
			return
		}
		seen[number] = true
		accounts = append(accounts, AccountSummary{
			AccountNumber:    number,
			ServiceType:      cells[1],
			Address:          cells[2],
			ConnectionStatus: cells[3],
		})
	})

	if len(accounts) > 0 {
		return accounts, nil
	}

	text := htmlutil.CleanText(doc.Text())
	for _, m := range accountLineRe.FindAllStringSubmatch(text, -1) {
		number, err := strconv.Atoi(m[1])
		if err != nil || seen[number] {
			continue
		}
		seen[number] = true
		accounts = append(accounts, AccountSummary{
			AccountNumber:    number,
			ServiceType:      m[2],
			Address:          strings.TrimSpace(m[3]),
			ConnectionStatus: m[4],
		})
	}

	return accounts, nil
}
