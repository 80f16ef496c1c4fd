package repo

import (
	"context"
	"database/sql"
	"errors"

	"accessreview/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// InsertRegistration stores one onboarded (app, account, source) tuple.
func (r Repo) InsertRegistration(ctx context.Context, reg domain.Registration) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO applications(app_name,account_name,source,type,environment,app_owner,app_owner_email,app_delegate,created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		reg.AppName, reg.AccountName, reg.Source, reg.Type, reg.Environment,
		reg.AppOwner, reg.AppOwnerEmail, reg.AppDelegate, reg.CreatedAt)
	return err
}

// ListRegistrations returns all registrations for one application and
// source. Callers treat an empty result as not-found.
func (r Repo) ListRegistrations(ctx context.Context, appName, source string) ([]domain.Registration, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT app_name,account_name,source,type,environment,app_owner,app_owner_email,app_delegate,created_at
		FROM applications WHERE app_name=? AND source=?`, appName, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRegistrations(rows)
}

// ListApplications returns every registration, ordered for display.
func (r Repo) ListApplications(ctx context.Context) ([]domain.Registration, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT app_name,account_name,source,type,environment,app_owner,app_owner_email,app_delegate,created_at
		FROM applications ORDER BY app_name, source, account_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRegistrations(rows)
}

func scanRegistrations(rows *sql.Rows) ([]domain.Registration, error) {
	var res []domain.Registration
	for rows.Next() {
		var reg domain.Registration
		if err := rows.Scan(&reg.AppName, &reg.AccountName, &reg.Source, &reg.Type, &reg.Environment,
			&reg.AppOwner, &reg.AppOwnerEmail, &reg.AppDelegate, &reg.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, reg)
	}
	return res, rows.Err()
}

// InsertAccessReview persists one principal review row.
func (r Repo) InsertAccessReview(ctx context.Context, rec domain.AccessReviewRecord) error {
	var signOffDate any
	if rec.SignOffDate != nil {
		signOffDate = *rec.SignOffDate
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO access_reviews(id,environment,full_name,user_id,user_role,manager,manager_uid,
		sign_off_status,sign_off_by,sign_off_date,comments,ticket_reference,ticket_status,
		source,account_name,app_name,frequency,period,app_delegate,created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Environment, rec.FullName, rec.UserID, rec.UserRole, rec.Manager, rec.ManagerUID,
		rec.SignOffStatus, rec.SignOffBy, signOffDate, rec.Comments, rec.TicketReference, rec.TicketStatus,
		rec.Source, rec.AccountName, rec.AppName, rec.Frequency, rec.Period, rec.AppDelegate, rec.CreatedAt)
	return err
}

// InsertServiceAccountReview persists one service-account review row.
func (r Repo) InsertServiceAccountReview(ctx context.Context, rec domain.ServiceAccountRecord) error {
	var signOffDate any
	if rec.SignOffDate != nil {
		signOffDate = *rec.SignOffDate
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO service_account_reviews(id,environment,service_account,user_role,manager,manager_uid,
		sign_off_status,sign_off_by,sign_off_date,comments,ticket_reference,ticket_status,
		source,account_name,app_name,frequency,period,app_delegate,created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Environment, rec.ServiceAccount, rec.UserRole, rec.Manager, rec.ManagerUID,
		rec.SignOffStatus, rec.SignOffBy, signOffDate, rec.Comments, rec.TicketReference, rec.TicketStatus,
		rec.Source, rec.AccountName, rec.AppName, rec.Frequency, rec.Period, rec.AppDelegate, rec.CreatedAt)
	return err
}

// ListAccessReviews returns persisted review rows for an application,
// optionally filtered by period.
func (r Repo) ListAccessReviews(ctx context.Context, appName, period string) ([]domain.AccessReviewRecord, error) {
	query := `SELECT id,environment,full_name,user_id,user_role,manager,manager_uid,
		sign_off_status,sign_off_by,sign_off_date,comments,ticket_reference,ticket_status,
		source,account_name,app_name,frequency,period,app_delegate,created_at
		FROM access_reviews WHERE app_name=?`
	args := []any{appName}
	if period != "" {
		query += ` AND period=?`
		args = append(args, period)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AccessReviewRecord
	for rows.Next() {
		var rec domain.AccessReviewRecord
		var signOffDate sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Environment, &rec.FullName, &rec.UserID, &rec.UserRole, &rec.Manager, &rec.ManagerUID,
			&rec.SignOffStatus, &rec.SignOffBy, &signOffDate, &rec.Comments, &rec.TicketReference, &rec.TicketStatus,
			&rec.Source, &rec.AccountName, &rec.AppName, &rec.Frequency, &rec.Period, &rec.AppDelegate, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if signOffDate.Valid {
			rec.SignOffDate = &signOffDate.String
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ListServiceAccountReviews returns persisted service-account rows for
// an application, optionally filtered by period.
func (r Repo) ListServiceAccountReviews(ctx context.Context, appName, period string) ([]domain.ServiceAccountRecord, error) {
	query := `SELECT id,environment,service_account,user_role,manager,manager_uid,
		sign_off_status,sign_off_by,sign_off_date,comments,ticket_reference,ticket_status,
		source,account_name,app_name,frequency,period,app_delegate,created_at
		FROM service_account_reviews WHERE app_name=?`
	args := []any{appName}
	if period != "" {
		query += ` AND period=?`
		args = append(args, period)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ServiceAccountRecord
	for rows.Next() {
		var rec domain.ServiceAccountRecord
		var signOffDate sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Environment, &rec.ServiceAccount, &rec.UserRole, &rec.Manager, &rec.ManagerUID,
			&rec.SignOffStatus, &rec.SignOffBy, &signOffDate, &rec.Comments, &rec.TicketReference, &rec.TicketStatus,
			&rec.Source, &rec.AccountName, &rec.AppName, &rec.Frequency, &rec.Period, &rec.AppDelegate, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if signOffDate.Valid {
			rec.SignOffDate = &signOffDate.String
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CountReviews returns the number of persisted review rows (both
// shapes) for an application and period.
func (r Repo) CountReviews(ctx context.Context, appName, period string) (int, error) {
	var regular, service int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_reviews WHERE app_name=? AND period=?`, appName, period).Scan(&regular); err != nil {
		return 0, err
	}
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_account_reviews WHERE app_name=? AND period=?`, appName, period).Scan(&service); err != nil {
		return 0, err
	}
	return regular + service, nil
}
