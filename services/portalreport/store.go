package portalreport

import (
	"context"
	"database/sql"
	"encoding/json"

	"calfscrape/lib/scrapers/calf"
	"calfscrape/services/portalreport/db"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Store archives finished reports in sqlite so past runs can be compared
// without rescraping (and burning captcha solves).
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed initializes) the archive at the given
// sqlite path. ":memory:" works for tests.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := database.ExecContext(ctx, db.Schema); err != nil {
		database.Close()
		return nil, err
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveRun archives one report under the identity that produced it.
func (s *Store) SaveRun(ctx context.Context, identity calf.Identity, report Report) error {
	ctx, span := tracer.Start(ctx, "store:SaveRun")
	defer span.End()
	span.SetAttributes(attribute.String("id_type", string(identity.Type)))

	blob, err := json.Marshal(report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize report")
		return err
	}

	pendingCount := 0
	pendingTotal := decimal.Zero
	for _, detail := range report.Details {
		pendingCount += detail.PendingCount
		pendingTotal = pendingTotal.Add(detail.PendingTotal)
	}

	_, err = s.db.ExecContext(ctx, `
		insert into runs (
			generated_at, id_type, id_number,
			display_name, username, person_id,
			account_count, pending_invoices, pending_total, report_json
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.GeneratedAt.Unix(),
		string(identity.Type),
		identity.Number,
		report.Person.DisplayName,
		report.Person.Username,
		report.Person.PersonID,
		len(report.Accounts),
		pendingCount,
		pendingTotal.StringFixed(2),
		blob,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to archive run")
		return err
	}
	return nil
}

// RunSummary is one archived run, without the full report payload.
type RunSummary struct {
	GeneratedAt     int64
	DisplayName     string
	AccountCount    int
	PendingInvoices int
	PendingTotal    string
}

// ListRuns returns archived runs for an identity, newest first.
func (s *Store) ListRuns(ctx context.Context, identity calf.Identity) ([]RunSummary, error) {
	ctx, span := tracer.Start(ctx, "store:ListRuns")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		select generated_at, display_name, account_count, pending_invoices, pending_total
		from runs
		where id_type = ? and id_number = ?
		order by generated_at desc`,
		string(identity.Type), identity.Number,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list runs")
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		err := rows.Scan(
			&run.GeneratedAt,
			&run.DisplayName,
			&run.AccountCount,
			&run.PendingInvoices,
			&run.PendingTotal,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
