// Package gormstore persists position rows in sqlite via gorm. Every
// Save appends a new row, so one trade yields an open row and a close
// row; the latest row per trade id is the current state.
package gormstore

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"macdbot/internal/store/model"
	"macdbot/internal/trader"
)

type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open position db: %w", err)
	}
	if err := db.AutoMigrate(&model.PositionRow{}); err != nil {
		return nil, fmt.Errorf("migrate position db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(ctx context.Context, rec trader.Position) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("save position %s: %w", rec.ID, err)
	}
	return nil
}

// List returns the most recent rows, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]model.PositionRow, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.PositionRow
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return rows, nil
}

func toRow(rec trader.Position) (*model.PositionRow, error) {
	brackets, err := json.Marshal(rec.Brackets)
	if err != nil {
		return nil, fmt.Errorf("encode brackets: %w", err)
	}
	return &model.PositionRow{
		TradeID:     rec.ID,
		Symbol:      rec.Symbol,
		Direction:   string(rec.Direction),
		EntryPrice:  rec.EntryPrice,
		Quantity:    rec.Quantity,
		StopLoss:    rec.StopLoss,
		TakeProfit:  rec.TakeProfit,
		Commission:  rec.Commission,
		State:       string(rec.State),
		Brackets:    datatypes.JSON(brackets),
		ExitPrice:   rec.ExitPrice,
		Pnl:         rec.Pnl,
		PnlPct:      rec.PnlPct,
		CloseReason: string(rec.CloseReason),
		OpenedAt:    rec.OpenedAt,
		ClosedAt:    rec.ClosedAt,
	}, nil
}
