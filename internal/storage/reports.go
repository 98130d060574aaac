package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
)

// SaveReport saves or updates an expense report header.
func (s *SQLiteStorage) SaveReport(ctx context.Context, report *model.ExpenseReport) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("%w: report", ErrNilParameter)
	}
	if err := validateString(report.ID, "report id"); err != nil {
		return err
	}
	if err := validateString(report.UserID, "report user_id"); err != nil {
		return err
	}

	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	if report.Status == "" {
		report.Status = model.ReportDraft
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, user_id, status, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status
	`, report.ID, report.UserID, report.Status, report.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

// SaveReportLines stores line items for a report.
func (s *SQLiteStorage) SaveReportLines(ctx context.Context, lines []model.ReportLine) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: lines", ErrEmptySlice)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO report_lines (id, report_id, date, description, vendor, amount, gl_code, department)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range lines {
		line := &lines[i]
		if _, err := stmt.ExecContext(ctx, line.ID, line.ReportID, line.Date,
			line.Description, line.Vendor, line.Amount, line.GLCode, line.Department); err != nil {
			return fmt.Errorf("failed to save report line %s: %w", line.ID, err)
		}
	}

	return tx.Commit()
}

// GetReport retrieves a report header. Returns nil when absent.
func (s *SQLiteStorage) GetReport(ctx context.Context, id string) (*model.ExpenseReport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var report model.ExpenseReport
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, created_at FROM reports WHERE id = ?
	`, id).Scan(&report.ID, &report.UserID, &report.Status, &report.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return &report, nil
}

// UpdateReportStatus transitions a report's lifecycle status.
func (s *SQLiteStorage) UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE reports SET status = ? WHERE id = ?
	`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrNotFound
	}

	return nil
}

// GetReportLines retrieves all line items for one report.
func (s *SQLiteStorage) GetReportLines(ctx context.Context, reportID string) ([]model.ReportLine, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(reportID, "reportID"); err != nil {
		return nil, err
	}

	return s.queryReportLines(ctx, `
		SELECT id, report_id, date, description, vendor, amount, gl_code, department
		FROM report_lines
		WHERE report_id = ?
		ORDER BY date ASC, id ASC
	`, reportID)
}

// GetLearnableReportLines retrieves every line item from a user's non-deleted
// reports, the corpus the pattern rebuild consumes.
func (s *SQLiteStorage) GetLearnableReportLines(ctx context.Context, userID string) ([]model.ReportLine, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	return s.queryReportLines(ctx, `
		SELECT l.id, l.report_id, l.date, l.description, l.vendor, l.amount, l.gl_code, l.department
		FROM report_lines l
		JOIN reports r ON r.id = l.report_id
		WHERE r.user_id = ? AND r.status != ?
		ORDER BY l.date ASC, l.id ASC
	`, userID, model.ReportDeleted)
}

func (s *SQLiteStorage) queryReportLines(ctx context.Context, query string, args ...any) ([]model.ReportLine, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query report lines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []model.ReportLine
	for rows.Next() {
		var line model.ReportLine
		var glCode, department sql.NullString
		if err := rows.Scan(&line.ID, &line.ReportID, &line.Date, &line.Description,
			&line.Vendor, &line.Amount, &glCode, &department); err != nil {
			return nil, fmt.Errorf("failed to scan report line: %w", err)
		}
		line.GLCode = glCode.String
		line.Department = department.String
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

// ReportLineLearned reports whether the line was already folded into the
// owner's patterns.
func (s *SQLiteStorage) ReportLineLearned(ctx context.Context, lineID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(lineID, "lineID"); err != nil {
		return false, err
	}

	var learned bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM learned_report_lines WHERE line_id = ?)
	`, lineID).Scan(&learned)
	if err != nil {
		return false, fmt.Errorf("failed to check learned report line: %w", err)
	}

	return learned, nil
}

// MarkReportLineLearned records that the line was folded into the owner's
// patterns. Marking an already-learned line is a no-op.
func (s *SQLiteStorage) MarkReportLineLearned(ctx context.Context, reportID, lineID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(reportID, "reportID"); err != nil {
		return err
	}
	if err := validateString(lineID, "lineID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learned_report_lines (line_id, report_id)
		VALUES (?, ?)
		ON CONFLICT(line_id) DO NOTHING
	`, lineID, reportID)
	if err != nil {
		return fmt.Errorf("failed to mark report line learned: %w", err)
	}

	return nil
}
