package engine

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/edgard/giftwatch/internal/database"
	"github.com/edgard/giftwatch/internal/feed"
)

type fakeStore struct {
	database.Store

	users       []database.User
	recorded    []recordedPurchase
	recordErr   error
	allUsersErr error
}

type recordedPurchase struct {
	userID      int64
	filterIndex int
	price       int64
}

func (s *fakeStore) AllUsers(_ context.Context) ([]database.User, error) {
	if s.allUsersErr != nil {
		return nil, s.allUsersErr
	}
	out := make([]database.User, len(s.users))
	copy(out, s.users)
	return out, nil
}

func (s *fakeStore) RecordPurchase(_ context.Context, userID int64, filterIndex int, price int64) (*database.User, error) {
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	s.recorded = append(s.recorded, recordedPurchase{userID, filterIndex, price})
	for i := range s.users {
		if s.users[i].UserID == userID {
			s.users[i].Balance -= price
			s.users[i].Filters[filterIndex].PurchasedCount++
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, database.ErrUserNotFound
}

type fakePurchaser struct {
	succeed   bool
	purchases []string
	messages  []string
}

func (p *fakePurchaser) PurchaseGift(_ context.Context, _, _ string, gift feed.Gift) bool {
	p.purchases = append(p.purchases, gift.ID)
	return p.succeed
}

func (p *fakePurchaser) SendChannelMessage(_ context.Context, _, _, text string) error {
	p.messages = append(p.messages, text)
	return nil
}

func subscribedUser(id, balance int64, filters ...database.Filter) database.User {
	return database.User{
		UserID:                id,
		Balance:               balance,
		Filters:               filters,
		SubscriptionActive:    true,
		SubscriptionExpiresAt: sql.NullTime{Time: time.Now().Add(time.Hour), Valid: true},
		ChannelID:             sql.NullString{String: "-100", Valid: true},
		ChannelAccessHash:     sql.NullString{String: "42", Valid: true},
	}
}

func newTestEngine(store *fakeStore, purchaser *fakePurchaser) *Engine {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, nil, purchaser, Intervals{}, "bought %s for %d, balance %d", log)
}

func TestRunCyclePurchasesMatchingGift(t *testing.T) {
	t.Parallel()

	store := &fakeStore{users: []database.User{
		subscribedUser(1, 500, database.Filter{MinPrice: 10, MaxPrice: 100, MaxRepeats: 1}),
	}}
	purchaser := &fakePurchaser{succeed: true}
	e := newTestEngine(store, purchaser)

	e.runCycle(context.Background(), []feed.Gift{{ID: "5", Price: 50}})

	if len(purchaser.purchases) != 1 {
		t.Fatalf("purchase attempts = %d, want 1", len(purchaser.purchases))
	}
	if len(store.recorded) != 1 {
		t.Fatalf("recorded purchases = %d, want 1", len(store.recorded))
	}
	got := store.recorded[0]
	if got.userID != 1 || got.filterIndex != 0 || got.price != 50 {
		t.Errorf("recorded purchase = %+v", got)
	}
	if len(purchaser.messages) != 1 {
		t.Errorf("channel messages = %d, want 1", len(purchaser.messages))
	}
}

func TestRunCycleSkipsIneligibleUsers(t *testing.T) {
	t.Parallel()

	expired := subscribedUser(1, 500, database.Filter{MinPrice: 10, MaxPrice: 100, MaxRepeats: 1})
	expired.SubscriptionExpiresAt = sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true}

	inactive := subscribedUser(2, 500, database.Filter{MinPrice: 10, MaxPrice: 100, MaxRepeats: 1})
	inactive.SubscriptionActive = false

	noChannel := subscribedUser(3, 500, database.Filter{MinPrice: 10, MaxPrice: 100, MaxRepeats: 1})
	noChannel.ChannelID = sql.NullString{}

	store := &fakeStore{users: []database.User{expired, inactive, noChannel}}
	purchaser := &fakePurchaser{succeed: true}
	e := newTestEngine(store, purchaser)

	e.runCycle(context.Background(), []feed.Gift{{ID: "5", Price: 50}})

	if len(purchaser.purchases) != 0 {
		t.Errorf("purchase attempts = %d, want 0", len(purchaser.purchases))
	}
}

func TestRunCycleFailedPurchaseLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	store := &fakeStore{users: []database.User{
		subscribedUser(1, 500, database.Filter{MinPrice: 10, MaxPrice: 100, MaxRepeats: 1}),
	}}
	purchaser := &fakePurchaser{succeed: false}
	e := newTestEngine(store, purchaser)

	e.runCycle(context.Background(), []feed.Gift{{ID: "5", Price: 50}})

	if len(purchaser.purchases) != 1 {
		t.Fatalf("purchase attempts = %d, want 1", len(purchaser.purchases))
	}
	if len(store.recorded) != 0 {
		t.Errorf("recorded purchases = %d, want 0", len(store.recorded))
	}
	if len(purchaser.messages) != 0 {
		t.Errorf("channel messages = %d, want 0", len(purchaser.messages))
	}
	if store.users[0].Balance != 500 {
		t.Errorf("balance = %d, want 500", store.users[0].Balance)
	}
}

func TestRunCycleRecordFailureSendsNoConfirmation(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		users: []database.User{
			subscribedUser(1, 500, database.Filter{MinPrice: 10, MaxPrice: 100, MaxRepeats: 1}),
		},
		recordErr: errors.New("db locked"),
	}
	purchaser := &fakePurchaser{succeed: true}
	e := newTestEngine(store, purchaser)

	e.runCycle(context.Background(), []feed.Gift{{ID: "5", Price: 50}})

	if len(purchaser.messages) != 0 {
		t.Errorf("channel messages = %d, want 0", len(purchaser.messages))
	}
}

// TestRunCycleSnapshotTracksSpending checks that a purchase earlier in a
// cycle reduces the funds visible to later gifts of the same cycle.
func TestRunCycleSnapshotTracksSpending(t *testing.T) {
	t.Parallel()

	store := &fakeStore{users: []database.User{
		subscribedUser(1, 60, database.Filter{MinPrice: 10, MaxPrice: 100, MaxRepeats: 5}),
	}}
	purchaser := &fakePurchaser{succeed: true}
	e := newTestEngine(store, purchaser)

	e.runCycle(context.Background(), []feed.Gift{
		{ID: "a", Price: 50},
		{ID: "b", Price: 50},
	})

	if len(store.recorded) != 1 {
		t.Fatalf("recorded purchases = %d, want 1", len(store.recorded))
	}
	if purchaser.purchases[0] != "a" {
		t.Errorf("purchased gift = %s, want a", purchaser.purchases[0])
	}
}

// TestRunCycleExhaustsFilterAcrossGifts walks one filter through its
// whole budget within a single listing.
func TestRunCycleExhaustsFilterAcrossGifts(t *testing.T) {
	t.Parallel()

	store := &fakeStore{users: []database.User{
		subscribedUser(1, 1000, database.Filter{MinPrice: 10, MaxPrice: 100, MaxRepeats: 2}),
	}}
	purchaser := &fakePurchaser{succeed: true}
	e := newTestEngine(store, purchaser)

	e.runCycle(context.Background(), []feed.Gift{
		{ID: "a", Price: 50},
		{ID: "b", Price: 50},
		{ID: "c", Price: 50},
	})

	if len(store.recorded) != 2 {
		t.Fatalf("recorded purchases = %d, want 2", len(store.recorded))
	}
	if store.users[0].Filters[0].PurchasedCount != 2 {
		t.Errorf("purchased count = %d, want 2", store.users[0].Filters[0].PurchasedCount)
	}
}

func TestPauseResume(t *testing.T) {
	t.Parallel()

	e := newTestEngine(&fakeStore{}, &fakePurchaser{})
	if e.Paused() {
		t.Fatal("engine starts paused")
	}
	e.Pause()
	if !e.Paused() {
		t.Fatal("Pause() did not take effect")
	}
	e.Resume()
	if e.Paused() {
		t.Fatal("Resume() did not take effect")
	}
}
