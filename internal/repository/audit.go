package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ReconciliationRecord is one audited engine outcome.
type ReconciliationRecord struct {
	ID             string
	EventType      string
	ProposalRef    string
	PaymentsPlanID string
	ScheduleID     int64
	InstalmentID   int64
	Outcome        string
	Detail         string
	CreatedAt      time.Time
}

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, rec ReconciliationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reconciliation_audit
			(id, event_type, proposal_ref, payments_plan_id, schedule_id, instalment_id, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.EventType, rec.ProposalRef, rec.PaymentsPlanID,
		rec.ScheduleID, rec.InstalmentID, rec.Outcome, rec.Detail, rec.CreatedAt,
	)
	return err
}

func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]ReconciliationRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, proposal_ref, payments_plan_id, schedule_id, instalment_id, outcome, detail, created_at
		FROM reconciliation_audit
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReconciliationRecord
	for rows.Next() {
		var rec ReconciliationRecord
		if err := rows.Scan(
			&rec.ID, &rec.EventType, &rec.ProposalRef, &rec.PaymentsPlanID,
			&rec.ScheduleID, &rec.InstalmentID, &rec.Outcome, &rec.Detail, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
