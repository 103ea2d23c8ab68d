package repository

import (
	"context"
	"database/sql"

	"github.com/ventline/ventline-api/internal/model"
)

// ReportRepo persists abuse reports for operator review.
type ReportRepo struct{ DB *sql.DB }

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{DB: db} }

// Insert stores a new report.
func (r *ReportRepo) Insert(ctx context.Context, rep model.Report) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO reports (id, target_type, target_id, reason, reporter_hash, resolved, created_at) VALUES (?,?,?,?,?,FALSE,?)",
		rep.ID, rep.TargetType, rep.TargetID, rep.Reason, rep.ReporterHash, rep.CreatedAt)
	return err
}

// ListOpen returns unresolved reports, oldest first, for the admin queue.
func (r *ReportRepo) ListOpen(ctx context.Context, limit int) ([]model.Report, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, target_type, target_id, reason, reporter_hash, resolved, created_at FROM reports WHERE resolved=FALSE ORDER BY created_at ASC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Report
	for rows.Next() {
		var rep model.Report
		if err := rows.Scan(&rep.ID, &rep.TargetType, &rep.TargetID, &rep.Reason, &rep.ReporterHash, &rep.Resolved, &rep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// Resolve marks a report handled.
func (r *ReportRepo) Resolve(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE reports SET resolved=TRUE WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
