package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/apperrors"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const uniqueViolation = "23505"

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const insertRecordQuery = `
    INSERT INTO stock_records (
        id, merchant_id, product_id, location_id,
        on_hand, reserved, in_transit, defective,
        reorder_level, reorder_quantity, status,
        created_at, updated_at
    )
    VALUES (
        :id, :merchant_id, :product_id, :location_id,
        :on_hand, :reserved, :in_transit, :defective,
        :reorder_level, :reorder_quantity, :status,
        :created_at, :updated_at
    )
`

// available is a generated column, so updates never write it.
const updateRecordQuery = `
    UPDATE stock_records SET
        on_hand = :on_hand,
        reserved = :reserved,
        in_transit = :in_transit,
        defective = :defective,
        reorder_level = :reorder_level,
        reorder_quantity = :reorder_quantity,
        status = :status,
        updated_at = :updated_at
    WHERE id = :id
`

const insertMovementQuery = `
    INSERT INTO stock_movements (
        id, merchant_id, stock_record_id, batch_id, order_ref,
        movement_type, quantity_change, quantity_before, quantity_after,
        reason, unit_cost, created_by, created_at
    )
    VALUES (
        :id, :merchant_id, :stock_record_id, :batch_id, :order_ref,
        :movement_type, :quantity_change, :quantity_before, :quantity_after,
        :reason, :unit_cost, :created_by, :created_at
    )
`

const insertBatchQuery = `
    INSERT INTO batches (
        id, merchant_id, stock_record_id, batch_number,
        quantity_received, quantity_sold, quantity_damaged, quantity_remaining,
        cost_per_unit, total_cost, expiry_date, received_at, status,
        created_at, updated_at
    )
    VALUES (
        :id, :merchant_id, :stock_record_id, :batch_number,
        :quantity_received, :quantity_sold, :quantity_damaged, :quantity_remaining,
        :cost_per_unit, :total_cost, :expiry_date, :received_at, :status,
        :created_at, :updated_at
    )
`

const updateBatchQuery = `
    UPDATE batches SET
        quantity_sold = :quantity_sold,
        quantity_damaged = :quantity_damaged,
        quantity_remaining = :quantity_remaining,
        status = :status,
        updated_at = :updated_at
    WHERE id = :id
`

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.StockRecord, error) {
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

func (r *PGRepository) GetByProductLocation(ctx context.Context, merchantID, productID string, locationID *string) (*model.StockRecord, error) {
	var rec model.StockRecord
	query := `SELECT * FROM stock_records WHERE merchant_id = $1 AND product_id = $2`
	args := []interface{}{merchantID, productID}

	if locationID != nil && *locationID != "" {
		query += ` AND location_id = $3`
		args = append(args, *locationID)
	} else {
		query += ` AND location_id IS NULL`
	}

	err := r.DB.GetContext(ctx, &rec, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.StockFilters) ([]model.StockRecord, int, error) {
	var items []model.StockRecord
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.MerchantID != "" {
		conditions = append(conditions, "merchant_id = :merchant_id")
		args["merchant_id"] = f.MerchantID
	}
	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.LocationID != nil {
		if *f.LocationID == "" {
			conditions = append(conditions, "location_id IS NULL")
		} else {
			conditions = append(conditions, "location_id = :location_id")
			args["location_id"] = *f.LocationID
		}
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}
	if f.LowStock {
		conditions = append(conditions, "available <= reorder_level AND reorder_level > 0")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM stock_records" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM stock_records" + whereClause + " ORDER BY updated_at DESC"
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

func (r *PGRepository) Save(ctx context.Context, rec *model.StockRecord) error {
	_, err := r.DB.NamedExecContext(ctx, updateRecordQuery, rec)
	return err
}

func (r *PGRepository) CreateWithMovement(ctx context.Context, rec *model.StockRecord, mv *model.StockMovement) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.NamedExecContext(ctx, insertRecordQuery, rec); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create stock record: %w", err)
	}

	if _, err = tx.NamedExecContext(ctx, insertMovementQuery, mv); err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}

	return tx.Commit()
}

func (r *PGRepository) SaveWithMovement(ctx context.Context, rec *model.StockRecord, batches []*model.Batch, mv *model.StockMovement) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.NamedExecContext(ctx, updateRecordQuery, rec); err != nil {
		return fmt.Errorf("failed to update stock record: %w", err)
	}

	for _, b := range batches {
		if _, err = tx.NamedExecContext(ctx, updateBatchQuery, b); err != nil {
			return fmt.Errorf("failed to update batch %s: %w", b.ID, err)
		}
	}

	if _, err = tx.NamedExecContext(ctx, insertMovementQuery, mv); err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}

	return tx.Commit()
}

func (r *PGRepository) CreateBatchWithMovement(ctx context.Context, rec *model.StockRecord, batch *model.Batch, mv *model.StockMovement) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.NamedExecContext(ctx, updateRecordQuery, rec); err != nil {
		return fmt.Errorf("failed to update stock record: %w", err)
	}

	if _, err = tx.NamedExecContext(ctx, insertBatchQuery, batch); err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	if _, err = tx.NamedExecContext(ctx, insertMovementQuery, mv); err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}

	return tx.Commit()
}

func (r *PGRepository) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	var b model.Batch
	err := r.DB.GetContext(ctx, &b, `SELECT * FROM batches WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *PGRepository) ListBatches(ctx context.Context, stockRecordID string) ([]model.Batch, error) {
	var items []model.Batch
	err := r.DB.SelectContext(ctx, &items, `
        SELECT * FROM batches
        WHERE stock_record_id = $1
        ORDER BY received_at ASC
    `, stockRecordID)
	return items, err
}

// ActiveBatchesFIFO returns consumable batches in pick order: soonest expiry
// first, then oldest receipt.
func (r *PGRepository) ActiveBatchesFIFO(ctx context.Context, stockRecordID string) ([]model.Batch, error) {
	var items []model.Batch
	err := r.DB.SelectContext(ctx, &items, `
        SELECT * FROM batches
        WHERE stock_record_id = $1 AND status = 'active' AND quantity_remaining > 0
        ORDER BY expiry_date ASC NULLS LAST, received_at ASC
    `, stockRecordID)
	return items, err
}

// ExpiringBatches returns consumable batches expiring by the deadline. An
// empty merchantID spans all merchants (the periodic alert pass).
func (r *PGRepository) ExpiringBatches(ctx context.Context, merchantID string, within time.Time) ([]model.Batch, error) {
	var items []model.Batch
	err := r.DB.SelectContext(ctx, &items, `
        SELECT * FROM batches
        WHERE ($1 = '' OR merchant_id::text = $1)
          AND status = 'active'
          AND quantity_remaining > 0
          AND expiry_date IS NOT NULL
          AND expiry_date <= $2
        ORDER BY expiry_date ASC
    `, merchantID, within)
	return items, err
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var items []model.StockMovement
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
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}
	if f.OrderRef != "" {
		conditions = append(conditions, "order_ref = :order_ref")
		args["order_ref"] = f.OrderRef
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at <= :end_date")
		args["end_date"] = *f.EndDate
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM stock_movements" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	// Commit order preserves the before/after chain per record.
	query := "SELECT * FROM stock_movements" + whereClause + " ORDER BY created_at ASC, id ASC"
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
