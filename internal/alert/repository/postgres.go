package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/alert/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/apperrors"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, a *model.Alert) error {
	_, err := r.DB.NamedExecContext(ctx, `
        INSERT INTO alerts (
            id, merchant_id, stock_record_id, batch_id,
            alert_type, status, message, current_quantity, threshold,
            triggered_at, acknowledged_at, resolved_at,
            created_at, updated_at
        )
        VALUES (
            :id, :merchant_id, :stock_record_id, :batch_id,
            :alert_type, :status, :message, :current_quantity, :threshold,
            :triggered_at, :acknowledged_at, :resolved_at,
            :created_at, :updated_at
        )
    `, a)
	return err
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Alert, error) {
	var a model.Alert
	err := r.DB.GetContext(ctx, &a, `SELECT * FROM alerts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *PGRepository) LastPendingTrigger(ctx context.Context, stockRecordID string, alertType model.AlertType) (*time.Time, error) {
	var triggeredAt time.Time
	err := r.DB.GetContext(ctx, &triggeredAt, `
        SELECT triggered_at FROM alerts
        WHERE stock_record_id = $1 AND alert_type = $2 AND status = 'pending'
        ORDER BY triggered_at DESC
        LIMIT 1
    `, stockRecordID, alertType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &triggeredAt, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, id string, status model.AlertStatus, at time.Time) (*model.Alert, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("alert %s: %w", id, apperrors.ErrNotFound)
	}

	a.Status = status
	a.UpdatedAt = at
	switch status {
	case model.AlertStatusAcknowledged:
		a.AcknowledgedAt = &at
	case model.AlertStatusResolved:
		a.ResolvedAt = &at
	}

	_, err = r.DB.NamedExecContext(ctx, `
        UPDATE alerts SET
            status = :status,
            acknowledged_at = :acknowledged_at,
            resolved_at = :resolved_at,
            updated_at = :updated_at
        WHERE id = :id
    `, a)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.AlertFilters) ([]model.Alert, int, error) {
	var items []model.Alert
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.MerchantID != "" {
		conditions = append(conditions, "merchant_id = :merchant_id")
		args["merchant_id"] = f.MerchantID
	}
	if f.StockRecordID != "" {
		conditions = append(conditions, "stock_record_id = :stock_record_id")
		args["stock_record_id"] = f.StockRecordID
	}
	if f.AlertType != "" {
		conditions = append(conditions, "alert_type = :alert_type")
		args["alert_type"] = f.AlertType
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM alerts" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM alerts" + whereClause + " ORDER BY triggered_at DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}
