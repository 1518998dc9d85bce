package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// UnitRepository はバンガロー情報の参照を担当するインターフェースです
type UnitRepository interface {
	Get(ctx context.Context, unitID string) (model.Unit, error)
	List(ctx context.Context) ([]model.Unit, error)
	GetNameByID(ctx context.Context, unitID string) (string, error)
}

// UnitRepositoryImpl はUnitRepositoryの実装です
type UnitRepositoryImpl struct {
	db *DB
}

// NewUnitRepository は新しいUnitRepositoryを作成します
func NewUnitRepository(db *DB) *UnitRepositoryImpl {
	return &UnitRepositoryImpl{
		db: db,
	}
}

const unitColumns = `id, name, capacity, daily_price, status, created_at, updated_at`

// Get は指定されたIDのバンガローを取得します
func (r *UnitRepositoryImpl) Get(ctx context.Context, unitID string) (model.Unit, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "UnitRepository.Get")
	defer seg.Close(nil)

	var unit model.Unit
	err := r.db.GetContext(ctx, &unit, `SELECT `+unitColumns+` FROM units WHERE id = $1`, unitID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Unit{}, fmt.Errorf("%w: %s", model.ErrUnitNotFound, unitID)
	}
	if err != nil {
		seg.Close(err)
		return model.Unit{}, fmt.Errorf("failed to get unit: %w", err)
	}

	return unit, nil
}

// List は全てのバンガローを名前順に取得します
func (r *UnitRepositoryImpl) List(ctx context.Context) ([]model.Unit, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "UnitRepository.List")
	defer seg.Close(nil)

	units := []model.Unit{}
	if err := r.db.SelectContext(ctx, &units, `SELECT `+unitColumns+` FROM units ORDER BY name`); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to list units: %w", err)
	}

	return units, nil
}

// GetNameByID は指定されたIDからバンガロー名を取得します
func (r *UnitRepositoryImpl) GetNameByID(ctx context.Context, unitID string) (string, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "UnitRepository.GetNameByID")
	defer seg.Close(nil)

	query := `
		SELECT name
		FROM units
		WHERE id = $1`

	var name string
	err := r.db.QueryRowContext(ctx, query, unitID).Scan(&name)
	if err != nil {
		seg.Close(err)
		return "", fmt.Errorf("failed to get unit name: %w", err)
	}

	return name, nil
}
