package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const insertReservationQuery = `
    INSERT INTO reservations (
        id, merchant_id, stock_record_id, order_ref,
        quantity_reserved, unit_price, status, requester,
        expires_at, released_at, release_reason,
        created_at, updated_at
    )
    VALUES (
        :id, :merchant_id, :stock_record_id, :order_ref,
        :quantity_reserved, :unit_price, :status, :requester,
        :expires_at, :released_at, :release_reason,
        :created_at, :updated_at
    )
`

const updateReservationQuery = `
    UPDATE reservations SET
        status = :status,
        expires_at = :expires_at,
        released_at = :released_at,
        release_reason = :release_reason,
        updated_at = :updated_at
    WHERE id = :id
`

// reserved moves with the reservation row; available is generated from it.
const updateRecordReservedQuery = `
    UPDATE stock_records SET
        reserved = :reserved,
        updated_at = :updated_at
    WHERE id = :id
`

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	var resv model.Reservation
	err := r.DB.GetContext(ctx, &resv, `SELECT * FROM reservations WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &resv, nil
}

func (r *PGRepository) GetStockRecord(ctx context.Context, id string) (*model.StockRecord, error) {
	var rec model.StockRecord
	err := r.DB.GetContext(ctx, &rec, `SELECT * FROM stock_records WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *PGRepository) CreateWithRecord(ctx context.Context, resv *model.Reservation, rec *model.StockRecord) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.NamedExecContext(ctx, insertReservationQuery, resv); err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	if _, err = tx.NamedExecContext(ctx, updateRecordReservedQuery, rec); err != nil {
		return fmt.Errorf("failed to update reserved quantity: %w", err)
	}

	return tx.Commit()
}

func (r *PGRepository) UpdateWithRecord(ctx context.Context, resv *model.Reservation, rec *model.StockRecord) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.NamedExecContext(ctx, updateReservationQuery, resv); err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if _, err = tx.NamedExecContext(ctx, updateRecordReservedQuery, rec); err != nil {
		return fmt.Errorf("failed to update reserved quantity: %w", err)
	}

	return tx.Commit()
}

func (r *PGRepository) ListByOrder(ctx context.Context, merchantID, orderRef string) ([]model.Reservation, error) {
	var items []model.Reservation
	err := r.DB.SelectContext(ctx, &items, `
        SELECT * FROM reservations
        WHERE merchant_id = $1 AND order_ref = $2
        ORDER BY created_at ASC
    `, merchantID, orderRef)
	return items, err
}

func (r *PGRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	var items []model.Reservation
	err := r.DB.SelectContext(ctx, &items, `
        SELECT * FROM reservations
        WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at < $1
        ORDER BY expires_at ASC
        LIMIT $2
    `, now, limit)
	return items, err
}

func (r *PGRepository) SumActiveByRecord(ctx context.Context, stockRecordID string) (int64, error) {
	var sum int64
	err := r.DB.GetContext(ctx, &sum, `
        SELECT COALESCE(SUM(quantity_reserved), 0) FROM reservations
        WHERE stock_record_id = $1 AND status IN ('pending', 'allocated')
    `, stockRecordID)
	return sum, err
}
