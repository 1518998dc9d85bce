// Package app は設定からストアとサービスを組み立てます
package app

import (
	"fmt"
	"log"

	"github.com/uma-arai/sbcntr-bungalow/internal/common/config"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/database"
	"github.com/uma-arai/sbcntr-bungalow/internal/repository"
	"github.com/uma-arai/sbcntr-bungalow/internal/service/reservation"
	"github.com/uma-arai/sbcntr-bungalow/internal/settings"
)

// Stores はサービスが利用するリポジトリの組です
type Stores struct {
	Units         repository.UnitRepository
	Customers     repository.CustomerRepository
	Reservations  repository.ReservationRepository
	Notifications repository.NotificationRepository

	// Memory はインメモリのストアを使っている場合のみ設定されます
	Memory *repository.MemoryStore
	db     *repository.DB
}

// NewStores は設定に応じてPostgreSQLまたはインメモリのストアを作成します
func NewStores(cfg *config.Config) (*Stores, error) {
	if cfg.UseMemoryStore {
		log.Printf("Using in-memory store. Data will be lost on restart")
		return NewMemoryStores(repository.NewMemoryStore()), nil
	}

	conn, err := database.NewDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	db := repository.NewDB(conn)
	return &Stores{
		Units:         repository.NewUnitRepository(db),
		Customers:     repository.NewCustomerRepository(db),
		Reservations:  repository.NewReservationRepository(db),
		Notifications: repository.NewNotificationRepository(db),
		db:            db,
	}, nil
}

// NewMemoryStores はインメモリのストアからStoresを作成します
func NewMemoryStores(store *repository.MemoryStore) *Stores {
	return &Stores{
		Units:         store.Units(),
		Customers:     store.Customers(),
		Reservations:  store.Reservations(),
		Notifications: store.Notifications(),
		Memory:        store,
	}
}

// Close はデータベース接続を閉じます
func (s *Stores) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// NewReservationService は設定に従って予約サービスを作成します
func NewReservationService(cfg *config.Config, stores *Stores, provider settings.Provider, events reservation.EventPublisher) *reservation.Service {
	return reservation.NewService(
		stores.Units,
		stores.Customers,
		stores.Reservations,
		provider,
		events,
		reservation.Options{
			ConfirmationTTL: cfg.Confirmation.TTL,
			ConfirmationURL: cfg.ConfirmationURL,
		},
	)
}
