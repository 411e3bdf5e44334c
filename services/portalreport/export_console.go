package portalreport

import (
	"fmt"
	"io"
	"sort"

	"calfscrape/lib/scrapers/calf"

	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteConsole renders the report as human-readable tables.
func WriteConsole(w io.Writer, report Report) {
	fmt.Fprintln(w, "==============================================")
	fmt.Fprintln(w, " Portal de Clientes CALF")
	fmt.Fprintln(w, "==============================================")
	fmt.Fprintf(w, "Nombre:  %s\n", report.Person.DisplayName)
	fmt.Fprintf(w, "Usuario: %s\n", report.Person.Username)
	fmt.Fprintf(w, "Persona: %s\n", report.Person.PersonID)
	fmt.Fprintln(w)

	if len(report.Accounts) == 0 {
		fmt.Fprintln(w, "No se encontraron cuentas.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Cuenta", "Servicio", "Domicilio", "Estado"})
	for _, account := range report.Accounts {
		t.AppendRow(table.Row{
			account.AccountNumber,
			account.ServiceType,
			account.Address,
			account.ConnectionStatus,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	for _, account := range report.Accounts {
		detail, ok := report.Details[account.AccountNumber]
		if !ok {
			if msg, failed := report.Failures[account.AccountNumber]; failed {
				fmt.Fprintf(w, "\nCuenta %d: detalle no disponible (%s)\n", account.AccountNumber, msg)
			}
			continue
		}
		writeDetailConsole(w, detail)
	}
}

func writeDetailConsole(w io.Writer, detail calf.AccountDetail) {
	fmt.Fprintf(w, "\n--- Cuenta %d ---\n", detail.AccountNumber)
	if detail.AssociateLabel != "" {
		fmt.Fprintf(w, "Asociado:  %s\n", detail.AssociateLabel)
	}
	if detail.FullAddress != "" {
		fmt.Fprintf(w, "Dirección: %s\n", detail.FullAddress)
	}
	if detail.DebtAsOfDate != "" {
		fmt.Fprintf(w, "Deuda al:  %s\n", detail.DebtAsOfDate)
	}
	fmt.Fprintf(w, "Facturas pendientes: %d ($ %s)\n",
		detail.PendingCount, detail.PendingTotal.StringFixed(2))

	if len(detail.Invoices) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendHeader(table.Row{"Emisión", "Vencimiento", "Factura", "Importe", "Estado"})
		for _, inv := range detail.Invoices {
			t.AppendRow(table.Row{
				inv.IssueDate.Format("02/01/2006"),
				inv.DueDate.Format("02/01/2006"),
				inv.InvoiceNumber,
				inv.Amount.StringFixed(2),
				inv.Status,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	}

	if len(detail.RawFields) > 0 {
		keys := make([]string, 0, len(detail.RawFields))
		for k := range detail.RawFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s: %s\n", k, detail.RawFields[k])
		}
	}
}
