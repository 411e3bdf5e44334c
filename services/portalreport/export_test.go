package portalreport

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"calfscrape/lib/scrapers/calf"

	"github.com/stretchr/testify/require"
)

func testReport() Report {
	accounts, details := testScrapeResults()
	for number, detail := range details {
		details[number] = reconcile(context.Background(), detail)
	}
	return Report{
		Person:      calf.Person{DisplayName: "PEREZ JUAN CARLOS", Username: "20123456789", PersonID: "88421"},
		GeneratedAt: time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC),
		Accounts:    accounts,
		Details:     details,
	}
}

func TestCSVFileName(t *testing.T) {
	name := CSVFileName(calf.Identity{Type: calf.IdentitySocio, Number: "123456"})
	require.Equal(t, "calf_socio_123456.csv", name)

	name = CSVFileName(calf.Identity{Type: calf.IdentityDNI, Number: "30123456"})
	require.Equal(t, "calf_dni_30123456.csv", name)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testReport()))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, []byte{0xef, 0xbb, 0xbf}))

	text := string(out[3:])
	require.Contains(t, text, "[person]")
	require.Contains(t, text, "[accounts]")
	require.Contains(t, text, "[detail]")
	require.Contains(t, text, "PEREZ JUAN CARLOS;20123456789;88421;2026-08-20 10:30:00")
	require.Contains(t, text, "10234;Energía;SAN MARTIN 450;CONECTADO;0;0.00")
	require.Contains(t, text, "20987;Agua;BELGRANO 1200;CONECTADO;1;52630.39")
	require.Contains(t, text, "20987;01/07/2026;15/07/2026;FACT B-0021-20159538;52630.39;Pending")
}

func TestWriteJSONStableKeys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testReport()))

	text := buf.String()
	for _, key := range []string{
		`"person"`, `"generated_at"`, `"accounts"`, `"details"`,
		`"account_number"`, `"service_type"`, `"connection_status"`,
		`"invoice_count_pending"`, `"invoice_total_pending"`,
		`"invoice_number"`, `"issue_date"`, `"due_date"`, `"status"`,
	} {
		require.Contains(t, text, key)
	}

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "PEREZ JUAN CARLOS", decoded.Person.DisplayName)
	require.Equal(t, 1, decoded.Details[20987].PendingCount)
	require.Equal(t, "52630.39", decoded.Details[20987].PendingTotal.String())
}

func TestWriteConsole(t *testing.T) {
	var buf bytes.Buffer
	WriteConsole(&buf, testReport())

	out := buf.String()
	require.Contains(t, out, "PEREZ JUAN CARLOS")
	require.Contains(t, out, "10234")
	require.Contains(t, out, "FACT B-0021-20159538")
	require.Contains(t, out, "Facturas pendientes: 1 ($ 52630.39)")
}

func TestWriteConsoleNoAccounts(t *testing.T) {
	var buf bytes.Buffer
	WriteConsole(&buf, Report{Person: calf.Person{DisplayName: "LOPEZ MARIA"}})

	require.True(t, strings.Contains(buf.String(), "No se encontraron cuentas."))
}
