package calf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const detailHTML = `
<html><body>
<div>Asociado: PEREZ JUAN CARLOS</div>
<div>Dirección: SAN MARTIN 450, NEUQUEN</div>
<div>Deuda al: 15/08/2026</div>
<div>Medidor: 884412</div>
<table>
  <tr><th>Emisión</th><th>Vencimiento</th><th>Factura</th><th>Importe</th><th>Estado</th></tr>
  <tr><td>01/07/2026</td><td>15/07/2026</td><td>FACT B-0021-20159538</td><td>52.630,39</td><td>PENDIENTE</td></tr>
  <tr><td>01/06/2026</td><td>15/06/2026</td><td>FACT B-0021-19884102</td><td>48.102,00</td><td>PAGADA</td></tr>
</table>
</body></html>`

func TestParseAccountDetail(t *testing.T) {
	detail, err := parseAccountDetail(detailHTML, 10234)
	require.NoError(t, err)

	require.Equal(t, 10234, detail.AccountNumber)
	require.Equal(t, "PEREZ JUAN CARLOS", detail.AssociateLabel)
	require.Equal(t, "SAN MARTIN 450, NEUQUEN", detail.FullAddress)
	require.Equal(t, "15/08/2026", detail.DebtAsOfDate)
	require.Equal(t, "884412", detail.RawFields["medidor"])

	require.Len(t, detail.Invoices, 2)
	first := detail.Invoices[0]
	require.Equal(t, "FACT B-0021-20159538", first.InvoiceNumber)
	require.Equal(t, "52630.39", first.Amount.String())
	require.Equal(t, InvoicePending, first.Status)
	require.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), first.IssueDate)
	require.Equal(t, time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC), first.DueDate)
	require.Equal(t, InvoicePaid, detail.Invoices[1].Status)

	require.Equal(t, 1, detail.PendingCount)
	require.Equal(t, "52630.39", detail.PendingTotal.String())
}

func TestParseAccountDetailFuzzyHeaders(t *testing.T) {
	// accents dropped and one column renamed, still an invoice grid
	html := `<table>
	  <tr><th>Emision</th><th>Vencim.</th><th>Comprobante</th><th>Importe</th><th>Estado</th></tr>
	  <tr><td>01/07/2026</td><td>15/07/2026</td><td>FACT B-1</td><td>100,00</td><td>IMPAGA</td></tr>
	</table>`

	detail, err := parseAccountDetail(html, 1)
	require.NoError(t, err)
	require.Len(t, detail.Invoices, 1)
	require.Equal(t, InvoicePending, detail.Invoices[0].Status)
}

func TestParseAccountDetailUnknownTablePreserved(t *testing.T) {
	html := `<div>Asociado: LOPEZ MARIA</div>
	<table><tr><td>Consumo histórico</td><td>kWh</td></tr></table>`

	detail, err := parseAccountDetail(html, 7)
	require.NoError(t, err)
	require.Empty(t, detail.Invoices)
	require.Contains(t, detail.RawFields["tabla_1"], "Consumo")
}

func TestParseAccountDetailStrayAmounts(t *testing.T) {
	html := `<div>Asociado: LOPEZ MARIA</div>
	<div>Saldo anterior $ 1.200,50 recargo $ 35,00</div>`

	detail, err := parseAccountDetail(html, 7)
	require.NoError(t, err)
	require.Equal(t, "$ 1.200,50, $ 35,00", detail.RawFields["importes_encontrados"])
}

func TestParseAccountDetailIgnoresDisplayedTotals(t *testing.T) {
	// pending figures come from the invoice rows alone; a page-displayed
	// total line must not leak into them
	html := `<div>Asociado: LOPEZ MARIA</div>
	<div>Total histórico de consumos $ 99.999,99</div>
	<table>
	  <tr><th>Emisión</th><th>Vencimiento</th><th>Factura</th><th>Importe</th><th>Estado</th></tr>
	  <tr><td>01/07/2026</td><td>15/07/2026</td><td>FACT B-1</td><td>100,00</td><td>PENDIENTE</td></tr>
	</table>`

	detail, err := parseAccountDetail(html, 9)
	require.NoError(t, err)
	require.Equal(t, 1, detail.PendingCount)
	require.Equal(t, "100.00", detail.PendingTotal.StringFixed(2))
}

func TestParseAccountDetailUnrecognizedPage(t *testing.T) {
	_, err := parseAccountDetail(`<html><body><p>Sesión expirada</p></body></html>`, 42)
	require.Error(t, err)

	var parseErr *DetailParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, 42, parseErr.AccountNumber)
}
