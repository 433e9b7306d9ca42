package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// In-memory store fakes. Their compare-and-set matches the SQL
// implementation's semantics under a mutex, so the concurrency tests
// exercise the same atomicity contract the services rely on in
// production.

type fakeSeatStore struct {
	mu       sync.Mutex
	seats    map[model.SeatKey]*model.Seat
	conflict map[model.SeatKey]bool
}

func newFakeSeatStore() *fakeSeatStore {
	return &fakeSeatStore{
		seats:    make(map[model.SeatKey]*model.Seat),
		conflict: make(map[model.SeatKey]bool),
	}
}

func (f *fakeSeatStore) add(showtimeID uint64, label string, priceCents uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := model.SeatKey{ShowtimeID: showtimeID, SeatLabel: label}
	f.seats[key] = &model.Seat{
		ShowtimeID: showtimeID,
		SeatLabel:  label,
		Status:     model.SeatStatusAvailable,
		PriceCents: priceCents,
	}
}

// seat returns a copy for assertions.
func (f *fakeSeatStore) seat(showtimeID uint64, label string) model.Seat {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.seats[model.SeatKey{ShowtimeID: showtimeID, SeatLabel: label}]
	return *s
}

// conflictOnce makes the next compare-and-set on the seat report a
// conflict without mutating anything, simulating a transition that lost
// a race mid-flight.
func (f *fakeSeatStore) conflictOnce(showtimeID uint64, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflict[model.SeatKey{ShowtimeID: showtimeID, SeatLabel: label}] = true
}

func (f *fakeSeatStore) ListByShowtime(_ context.Context, showtimeID uint64) ([]model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Seat
	for _, s := range f.seats {
		if s.ShowtimeID == showtimeID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatLabel < out[j].SeatLabel })
	return out, nil
}

func (f *fakeSeatStore) Get(_ context.Context, key model.SeatKey) (*model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seats[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSeatStore) CompareAndSet(_ context.Context, key model.SeatKey, expect model.SeatExpect, next model.SeatChange) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflict[key] {
		delete(f.conflict, key)
		return false, nil
	}
	s, ok := f.seats[key]
	if !ok {
		return false, nil
	}
	if s.Status != expect.Status {
		return false, nil
	}
	if expect.HeldBy != nil && (s.HeldBy == nil || *s.HeldBy != *expect.HeldBy) {
		return false, nil
	}
	if expect.ExpiredAtOrBefore != nil && (s.HeldUntil == nil || s.HeldUntil.After(*expect.ExpiredAtOrBefore)) {
		return false, nil
	}
	if expect.LiveAt != nil && (s.HeldUntil == nil || !s.HeldUntil.After(*expect.LiveAt)) {
		return false, nil
	}
	if expect.BookingID != nil && (s.BookingID == nil || *s.BookingID != *expect.BookingID) {
		return false, nil
	}
	s.Status = next.Status
	s.HeldBy = copyU64(next.HeldBy)
	s.HeldUntil = copyTime(next.HeldUntil)
	s.BookingID = copyU64(next.BookingID)
	return true, nil
}

func copyU64(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type fakeBookingStore struct {
	mu       sync.Mutex
	nextID   uint64
	bookings map[uint64]*model.Booking
	seats    map[uint64][]model.BookingSeat
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{
		bookings: make(map[uint64]*model.Booking),
		seats:    make(map[uint64][]model.BookingSeat),
	}
}

func (f *fakeBookingStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bookings)
}

func (f *fakeBookingStore) Create(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeBookingStore) Get(_ context.Context, id uint64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingStore) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bookings, id)
	return nil
}

func (f *fakeBookingStore) UpdateStatusIfPending(_ context.Context, id uint64, status string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.Status != model.BookingStatusPending {
		return false, nil
	}
	b.Status = status
	return true, nil
}

func (f *fakeBookingStore) SetPaymentRef(_ context.Context, id uint64, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		b.PaymentRef = &ref
	}
	return nil
}

func (f *fakeBookingStore) CreateSeats(_ context.Context, seats []model.BookingSeat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range seats {
		f.seats[s.BookingID] = append(f.seats[s.BookingID], s)
	}
	return nil
}

func (f *fakeBookingStore) DeleteSeats(_ context.Context, bookingID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seats, bookingID)
	return nil
}

func (f *fakeBookingStore) ListSeats(_ context.Context, bookingID uint64) ([]model.BookingSeat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.BookingSeat(nil), f.seats[bookingID]...), nil
}

func (f *fakeBookingStore) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type userCouponKey struct{ userID, couponID uint64 }

type appliedKey struct{ bookingID, couponID uint64 }

type fakeCouponStore struct {
	mu          sync.Mutex
	coupons     map[uint64]*model.Coupon
	userCoupons map[userCouponKey]*model.UserCoupon
	applied     map[appliedKey]*model.BookingCoupon
}

func newFakeCouponStore() *fakeCouponStore {
	return &fakeCouponStore{
		coupons:     make(map[uint64]*model.Coupon),
		userCoupons: make(map[userCouponKey]*model.UserCoupon),
		applied:     make(map[appliedKey]*model.BookingCoupon),
	}
}

func (f *fakeCouponStore) addCoupon(c model.Coupon) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := c
	f.coupons[c.ID] = &cp
}

func (f *fakeCouponStore) grant(userID, couponID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCoupons[userCouponKey{userID, couponID}] = &model.UserCoupon{
		ID:       uint64(len(f.userCoupons) + 1),
		UserID:   userID,
		CouponID: couponID,
	}
}

func (f *fakeCouponStore) coupon(id uint64) model.Coupon {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.coupons[id]
}

func (f *fakeCouponStore) instance(userID, couponID uint64) model.UserCoupon {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.userCoupons[userCouponKey{userID, couponID}]
}

func (f *fakeCouponStore) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

func (f *fakeCouponStore) GetCoupon(_ context.Context, id uint64) (*model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCouponStore) GetCouponByCode(_ context.Context, code string) (*model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCouponStore) GetUserCoupon(_ context.Context, userID, couponID uint64) (*model.UserCoupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uc, ok := f.userCoupons[userCouponKey{userID, couponID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *uc
	return &cp, nil
}

func (f *fakeCouponStore) MarkUserCouponUsed(_ context.Context, userID, couponID uint64, usedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uc, ok := f.userCoupons[userCouponKey{userID, couponID}]
	if !ok || uc.IsUsed {
		return false, nil
	}
	uc.IsUsed = true
	t := usedAt
	uc.UsedDate = &t
	return true, nil
}

func (f *fakeCouponStore) ResetUserCoupon(_ context.Context, userID, couponID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uc, ok := f.userCoupons[userCouponKey{userID, couponID}]
	if !ok || !uc.IsUsed {
		return false, nil
	}
	uc.IsUsed = false
	uc.UsedDate = nil
	return true, nil
}

func (f *fakeCouponStore) CreateBookingCoupon(_ context.Context, bc *model.BookingCoupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := appliedKey{bc.BookingID, bc.CouponID}
	if _, exists := f.applied[key]; exists {
		return repository.ErrDuplicate
	}
	cp := *bc
	f.applied[key] = &cp
	return nil
}

func (f *fakeCouponStore) FindBookingCoupon(_ context.Context, bookingID uint64) (*model.BookingCoupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, bc := range f.applied {
		if key.bookingID == bookingID {
			cp := *bc
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCouponStore) DeleteBookingCoupon(_ context.Context, bookingID, couponID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := appliedKey{bookingID, couponID}
	if _, exists := f.applied[key]; !exists {
		return false, nil
	}
	delete(f.applied, key)
	return true, nil
}

func (f *fakeCouponStore) IncrementUsedCount(_ context.Context, couponID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[couponID]
	if !ok || c.UsedCount >= c.UsageLimit {
		return false, nil
	}
	c.UsedCount++
	return true, nil
}

func (f *fakeCouponStore) DecrementUsedCount(_ context.Context, couponID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.coupons[couponID]; ok && c.UsedCount > 0 {
		c.UsedCount--
	}
	return nil
}

func (f *fakeCouponStore) ListUnusedByUser(_ context.Context, userID uint64, now time.Time) ([]model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Coupon
	for key, uc := range f.userCoupons {
		if key.userID != userID || uc.IsUsed {
			continue
		}
		c, ok := f.coupons[key.couponID]
		if !ok || c.Status != model.CouponStatusActive {
			continue
		}
		if now.Before(c.StartDate) || now.After(c.EndDate) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeBridge struct {
	mu       sync.Mutex
	requests []uint64
	err      error
}

func (f *fakeBridge) RequestCharge(_ context.Context, b *model.Booking, _ []model.BookingSeat) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.requests = append(f.requests, b.ID)
	return "pay-ref-1", nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	confirmed []uint64
}

func (f *fakeNotifier) BookingConfirmed(_ context.Context, b *model.Booking, _ []model.BookingSeat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, b.ID)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.confirmed)
}
