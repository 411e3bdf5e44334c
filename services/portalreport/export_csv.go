package portalreport

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"calfscrape/lib/scrapers/calf"
)

// utf8BOM keeps Excel (the file's usual consumer) from mangling the
// accented characters the portal is full of.
var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// CSVFileName derives the output file name from the login identity.
func CSVFileName(identity calf.Identity) string {
	return fmt.Sprintf("calf_%s_%s.csv",
		strings.ToLower(string(identity.Type)), identity.Number)
}

// WriteCSV renders the report as a sectioned semicolon-separated file.
// Sections are marked with bracketed headers so the single file stays
// importable into a spreadsheet without losing its structure.
func WriteCSV(w io.Writer, report Report) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'

	records := [][]string{
		{"[person]"},
		{"nombre", "usuario", "persona", "generado"},
		{
			report.Person.DisplayName,
			report.Person.Username,
			report.Person.PersonID,
			report.GeneratedAt.Format("2006-01-02 15:04:05"),
		},
		{},
		{"[accounts]"},
		{"cuenta", "servicio", "domicilio", "estado", "facturas_pendientes", "total_pendiente"},
	}
	for _, account := range report.Accounts {
		record := []string{
			strconv.Itoa(account.AccountNumber),
			account.ServiceType,
			account.Address,
			account.ConnectionStatus,
			"", "",
		}
		if detail, ok := report.Details[account.AccountNumber]; ok {
			record[4] = strconv.Itoa(detail.PendingCount)
			record[5] = detail.PendingTotal.StringFixed(2)
		}
		records = append(records, record)
	}

	records = append(records, []string{}, []string{"[detail]"},
		[]string{"cuenta", "emision", "vencimiento", "factura", "importe", "estado"})
	for _, account := range report.Accounts {
		detail, ok := report.Details[account.AccountNumber]
		if !ok {
			continue
		}
		for _, inv := range detail.Invoices {
			records = append(records, []string{
				strconv.Itoa(detail.AccountNumber),
				inv.IssueDate.Format("02/01/2006"),
				inv.DueDate.Format("02/01/2006"),
				inv.InvoiceNumber,
				inv.Amount.StringFixed(2),
				string(inv.Status),
			})
		}
		for _, record := range rawFieldRecords(detail) {
			records = append(records, record)
		}
	}

	if err := cw.WriteAll(records); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func rawFieldRecords(detail calf.AccountDetail) [][]string {
	if len(detail.RawFields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(detail.RawFields))
	for k := range detail.RawFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([][]string, 0, len(keys))
	for _, k := range keys {
		records = append(records, []string{
			strconv.Itoa(detail.AccountNumber),
			"raw:" + k,
			strings.ReplaceAll(detail.RawFields[k], "\n", " "),
		})
	}
	return records
}
