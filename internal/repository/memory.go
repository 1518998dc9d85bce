package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/uma-arai/sbcntr-bungalow/internal/model"
)

// MemoryStore はデータベースを使わずに動作するインメモリのストアです
// ローカル実行とテストで使います
type MemoryStore struct {
	mu            sync.RWMutex
	units         map[string]model.Unit
	customers     map[string]model.Customer
	reservations  map[string]model.Reservation
	notifications []model.NotificationRecord
	seq           int64

	// ユニットごとの排他。予約作成の空き確認から保存までを直列化する
	unitLocks sync.Map
}

// NewMemoryStore は空のMemoryStoreを作成します
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		units:        make(map[string]model.Unit),
		customers:    make(map[string]model.Customer),
		reservations: make(map[string]model.Reservation),
	}
}

// PutUnit はバンガローを登録します
func (s *MemoryStore) PutUnit(unit model.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[unit.ID] = unit
}

// PutCustomer は顧客を登録します
func (s *MemoryStore) PutCustomer(customer model.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customer.ID] = customer
}

// Units はUnitRepositoryとしてのビューを返します
func (s *MemoryStore) Units() *MemoryUnitRepository {
	return &MemoryUnitRepository{store: s}
}

// Customers はCustomerRepositoryとしてのビューを返します
func (s *MemoryStore) Customers() *MemoryCustomerRepository {
	return &MemoryCustomerRepository{store: s}
}

// Reservations はReservationRepositoryとしてのビューを返します
func (s *MemoryStore) Reservations() *MemoryReservationRepository {
	return &MemoryReservationRepository{store: s}
}

// Notifications はNotificationRepositoryとしてのビューを返します
func (s *MemoryStore) Notifications() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{store: s}
}

func (s *MemoryStore) unitLock(unitID string) *sync.Mutex {
	lock, _ := s.unitLocks.LoadOrStore(unitID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// MemoryUnitRepository はMemoryStore上のUnitRepositoryです
type MemoryUnitRepository struct {
	store *MemoryStore
}

func (r *MemoryUnitRepository) Get(ctx context.Context, unitID string) (model.Unit, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	unit, ok := r.store.units[unitID]
	if !ok {
		return model.Unit{}, fmt.Errorf("%w: %s", model.ErrUnitNotFound, unitID)
	}
	return unit, nil
}

func (r *MemoryUnitRepository) List(ctx context.Context) ([]model.Unit, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	units := make([]model.Unit, 0, len(r.store.units))
	for _, unit := range r.store.units {
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })
	return units, nil
}

func (r *MemoryUnitRepository) GetNameByID(ctx context.Context, unitID string) (string, error) {
	unit, err := r.Get(ctx, unitID)
	if err != nil {
		return "", fmt.Errorf("failed to get unit name: %w", err)
	}
	return unit.Name, nil
}

// MemoryCustomerRepository はMemoryStore上のCustomerRepositoryです
type MemoryCustomerRepository struct {
	store *MemoryStore
}

func (r *MemoryCustomerRepository) Get(ctx context.Context, customerID string) (model.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	customer, ok := r.store.customers[customerID]
	if !ok {
		return model.Customer{}, fmt.Errorf("%w: %s", model.ErrCustomerNotFound, customerID)
	}
	return customer, nil
}

func (r *MemoryCustomerRepository) UpdateAggregates(ctx context.Context, customerID string, agg model.CustomerAggregate, now time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	customer, ok := r.store.customers[customerID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrCustomerNotFound, customerID)
	}
	customer.TotalReservations = agg.TotalReservations
	customer.TotalSpent = agg.TotalSpent
	customer.UpdatedAt = now
	r.store.customers[customerID] = customer
	return nil
}

// MemoryReservationRepository はMemoryStore上のReservationRepositoryです
type MemoryReservationRepository struct {
	store *MemoryStore
}

func (r *MemoryReservationRepository) Get(ctx context.Context, reservationID string) (model.Reservation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	reservation, ok := r.store.reservations[reservationID]
	if !ok {
		return model.Reservation{}, model.ErrReservationNotFound
	}
	return reservation, nil
}

func (r *MemoryReservationRepository) GetByConfirmationCode(ctx context.Context, code string) (model.Reservation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, reservation := range r.store.reservations {
		if reservation.ConfirmationCode != nil && *reservation.ConfirmationCode == code {
			return reservation, nil
		}
	}
	return model.Reservation{}, model.ErrReservationNotFound
}

func (r *MemoryReservationRepository) List(ctx context.Context, filter ReservationFilter) ([]model.Reservation, error) {
	return r.selectWhere(func(res model.Reservation) bool {
		return (filter.Status == "" || res.Status == filter.Status) &&
			(filter.UnitID == "" || res.UnitID == filter.UnitID) &&
			(filter.CustomerID == "" || res.CustomerID == filter.CustomerID)
	}), nil
}

func (r *MemoryReservationRepository) ListByUnit(ctx context.Context, unitID string) ([]model.Reservation, error) {
	return r.List(ctx, ReservationFilter{UnitID: unitID})
}

func (r *MemoryReservationRepository) ListByCustomer(ctx context.Context, customerID string) ([]model.Reservation, error) {
	return r.List(ctx, ReservationFilter{CustomerID: customerID})
}

func (r *MemoryReservationRepository) ListExpiredPending(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	return r.selectWhere(func(res model.Reservation) bool {
		return res.IsExpiredPending(now)
	}), nil
}

func (r *MemoryReservationRepository) Update(ctx context.Context, reservation *model.Reservation, expected model.ReservationStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.reservations[reservation.ID]
	if !ok {
		return model.ErrReservationNotFound
	}
	if current.Status != expected {
		return fmt.Errorf("%w: reservation %s is no longer %s", ErrStaleUpdate, reservation.ID, expected)
	}
	r.store.reservations[reservation.ID] = *reservation
	return nil
}

func (r *MemoryReservationRepository) WithUnitLock(ctx context.Context, unitID string, fn func(ctx context.Context, tx ReservationTx) error) error {
	lock := r.store.unitLock(unitID)
	lock.Lock()
	defer lock.Unlock()

	tx := &memoryReservationTx{repo: r}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	// fnが成功した場合のみ作成分を反映する
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, reservation := range tx.created {
		r.store.reservations[reservation.ID] = reservation
	}
	return nil
}

func (r *MemoryReservationRepository) selectWhere(match func(model.Reservation) bool) []model.Reservation {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	reservations := []model.Reservation{}
	for _, reservation := range r.store.reservations {
		if match(reservation) {
			reservations = append(reservations, reservation)
		}
	}
	sort.Slice(reservations, func(i, j int) bool {
		if !reservations[i].CheckIn.Equal(reservations[j].CheckIn) {
			return reservations[i].CheckIn.Before(reservations[j].CheckIn)
		}
		return reservations[i].Code < reservations[j].Code
	})
	return reservations
}

type memoryReservationTx struct {
	repo    *MemoryReservationRepository
	created []model.Reservation
}

func (t *memoryReservationTx) ListByUnit(ctx context.Context, unitID string) ([]model.Reservation, error) {
	reservations, err := t.repo.ListByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	for _, reservation := range t.created {
		if reservation.UnitID == unitID {
			reservations = append(reservations, reservation)
		}
	}
	return reservations, nil
}

func (t *memoryReservationTx) NextCode(ctx context.Context) (string, error) {
	t.repo.store.mu.Lock()
	defer t.repo.store.mu.Unlock()

	t.repo.store.seq++
	return model.FormatReservationCode(t.repo.store.seq), nil
}

func (t *memoryReservationTx) Create(ctx context.Context, reservation *model.Reservation) error {
	t.created = append(t.created, *reservation)
	return nil
}

// MemoryNotificationRepository はMemoryStore上のNotificationRepositoryです
type MemoryNotificationRepository struct {
	store *MemoryStore
}

func (r *MemoryNotificationRepository) CreateNotifications(ctx context.Context, records []model.NotificationRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, record := range records {
		record.ID = len(r.store.notifications) + 1
		r.store.notifications = append(r.store.notifications, record)
	}
	return nil
}

func (r *MemoryNotificationRepository) GetByCustomerID(ctx context.Context, customerID string) ([]model.NotificationRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var records []model.NotificationRecord
	for i := len(r.store.notifications) - 1; i >= 0; i-- {
		if r.store.notifications[i].CustomerID == customerID {
			records = append(records, r.store.notifications[i])
		}
	}
	return records, nil
}

var (
	_ UnitRepository         = (*MemoryUnitRepository)(nil)
	_ CustomerRepository     = (*MemoryCustomerRepository)(nil)
	_ ReservationRepository  = (*MemoryReservationRepository)(nil)
	_ NotificationRepository = (*MemoryNotificationRepository)(nil)
	_ UnitRepository         = (*UnitRepositoryImpl)(nil)
	_ CustomerRepository     = (*CustomerRepositoryImpl)(nil)
	_ ReservationRepository  = (*ReservationRepositoryImpl)(nil)
	_ NotificationRepository = (*NotificationRepositoryImpl)(nil)
)
