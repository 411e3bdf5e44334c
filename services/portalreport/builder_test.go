package portalreport

import (
	"context"
	"testing"
	"time"

	"calfscrape/lib/scrapers/calf"
	"calfscrape/lib/telemetry"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testScrapeResults() ([]calf.AccountSummary, map[int]calf.AccountDetail) {
	accounts := []calf.AccountSummary{
		{AccountNumber: 10234, ServiceType: "Energía", Address: "SAN MARTIN 450", ConnectionStatus: "CONECTADO"},
		{AccountNumber: 20987, ServiceType: "Agua", Address: "BELGRANO 1200", ConnectionStatus: "CONECTADO"},
	}
	details := map[int]calf.AccountDetail{
		10234: {
			AccountNumber: 10234,
			Invoices: []calf.InvoiceLine{
				{IssueDate: date(2026, 6, 1), DueDate: date(2026, 6, 15), InvoiceNumber: "FACT B-0021-19884102", Amount: amount("48102.00"), Status: calf.InvoicePaid},
			},
		},
		20987: {
			AccountNumber: 20987,
			Invoices: []calf.InvoiceLine{
				{IssueDate: date(2026, 7, 1), DueDate: date(2026, 7, 15), InvoiceNumber: "FACT B-0021-20159538", Amount: amount("52630.39"), Status: calf.InvoicePending},
				{IssueDate: date(2026, 6, 1), DueDate: date(2026, 6, 15), InvoiceNumber: "FACT B-0021-19884103", Amount: amount("48102.00"), Status: calf.InvoicePaid},
			},
		},
	}
	return accounts, details
}

func TestBuildRecomputesPendingTotals(t *testing.T) {
	defer telemetry.SetupForTesting(t, "test:portalreport")()

	accounts, details := testScrapeResults()
	person := calf.Person{DisplayName: "PEREZ JUAN CARLOS", Username: "20123456789", PersonID: "88421"}

	report := Build(context.Background(), person, accounts, details, nil)

	require.Equal(t, person, report.Person)
	require.WithinDuration(t, time.Now(), report.GeneratedAt, time.Minute)
	require.Len(t, report.Accounts, 2)

	require.Equal(t, 0, report.Details[10234].PendingCount)
	require.True(t, report.Details[10234].PendingTotal.IsZero())

	require.Equal(t, 1, report.Details[20987].PendingCount)
	require.Equal(t, "52630.39", report.Details[20987].PendingTotal.String())
}

func TestBuildOverridesDisplayedTotals(t *testing.T) {
	defer telemetry.SetupForTesting(t, "test:portalreport")()

	// the page showed a stale total; the invoice rows win
	details := map[int]calf.AccountDetail{
		42: {
			AccountNumber: 42,
			PendingCount:  3,
			PendingTotal:  amount("99999.99"),
			Invoices: []calf.InvoiceLine{
				{InvoiceNumber: "FACT B-1", Amount: amount("100.10"), Status: calf.InvoicePending},
				{InvoiceNumber: "FACT B-2", Amount: amount("200.20"), Status: calf.InvoicePending},
			},
		},
	}

	report := Build(context.Background(), calf.Person{}, nil, details, nil)
	require.Equal(t, 2, report.Details[42].PendingCount)
	require.Equal(t, "300.30", report.Details[42].PendingTotal.StringFixed(2))
}

func TestBuildTwoAccountsOnePending(t *testing.T) {
	defer telemetry.SetupForTesting(t, "test:portalreport")()

	accounts := []calf.AccountSummary{
		{AccountNumber: 1, ServiceType: "Energía", Address: "SAN MARTIN 450", ConnectionStatus: "CONECTADO"},
		{AccountNumber: 2, ServiceType: "Agua", Address: "SAN MARTIN 450", ConnectionStatus: "CONECTADO"},
	}
	details := map[int]calf.AccountDetail{
		1: {AccountNumber: 1},
		2: {
			AccountNumber: 2,
			Invoices: []calf.InvoiceLine{{
				IssueDate:     date(2026, 1, 20),
				DueDate:       date(2026, 2, 6),
				InvoiceNumber: "FACT B-0021-20159538",
				Amount:        amount("52630.39"),
				Status:        calf.InvoicePending,
			}},
		},
	}
	person := calf.Person{DisplayName: "PEREZ JUAN CARLOS"}

	report := Build(context.Background(), person, accounts, details, nil)

	require.Equal(t, 0, report.Details[1].PendingCount)
	require.True(t, report.Details[1].PendingTotal.IsZero())
	require.Equal(t, 1, report.Details[2].PendingCount)
	require.Equal(t, "52630.39", report.Details[2].PendingTotal.String())
}

func TestBuildZeroAccounts(t *testing.T) {
	defer telemetry.SetupForTesting(t, "test:portalreport")()

	report := Build(context.Background(), calf.Person{DisplayName: "LOPEZ MARIA"},
		[]calf.AccountSummary{}, map[int]calf.AccountDetail{}, nil)

	require.Empty(t, report.Accounts)
	require.Empty(t, report.Details)
	require.Equal(t, "LOPEZ MARIA", report.Person.DisplayName)
}

func TestBuildKeepsFailedAccountsVisible(t *testing.T) {
	defer telemetry.SetupForTesting(t, "test:portalreport")()

	accounts, details := testScrapeResults()
	delete(details, 10234)
	failures := map[int]string{10234: "failed to parse detail of account 10234"}

	report := Build(context.Background(), calf.Person{}, accounts, details, failures)

	require.Len(t, report.Accounts, 2)
	require.NotContains(t, report.Details, 10234)
	require.Contains(t, report.Details, 20987)
	require.Contains(t, report.Failures[10234], "account 10234")
}
