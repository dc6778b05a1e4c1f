package database_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/edgard/giftwatch/internal/database"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestUpdateUserCreatesDefaultRecord(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.UpdateUser(ctx, 100, database.UserPatch{})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if user.UserID != 100 {
		t.Errorf("UserID = %d, want 100", user.UserID)
	}
	if user.Language != "en" {
		t.Errorf("Language = %q, want en", user.Language)
	}
	if user.Balance != 0 || user.SubscriptionActive || len(user.Filters) != 0 {
		t.Errorf("default record not empty: %+v", user)
	}

	got, err := store.GetUser(ctx, 100)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetUser() returned nil after create")
	}
}

func TestGetUserUnknownReturnsNil(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	user, err := store.GetUser(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user != nil {
		t.Errorf("GetUser() = %+v, want nil", user)
	}
}

func TestUpdateUserMergesOnlySetFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	lang := "ru"
	balance := int64(250)
	if _, err := store.UpdateUser(ctx, 100, database.UserPatch{Language: &lang, Balance: &balance}); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	active := true
	expires := time.Now().UTC().Add(24 * time.Hour)
	user, err := store.UpdateUser(ctx, 100, database.UserPatch{
		SubscriptionActive:    &active,
		SubscriptionExpiresAt: &expires,
	})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	if user.Language != "ru" {
		t.Errorf("Language = %q, want ru", user.Language)
	}
	if user.Balance != 250 {
		t.Errorf("Balance = %d, want 250", user.Balance)
	}
	if !user.SubscriptionCurrent(time.Now().UTC()) {
		t.Error("subscription not current after activation")
	}
}

func TestUpdateUserPersistsFilters(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	filters := []database.Filter{
		{MinPrice: 10, MaxPrice: 100, MaxRepeats: 3},
		{MinPrice: 200, MaxPrice: 500, MaxRepeats: 1, PurchasedCount: 1},
	}
	if _, err := store.UpdateUser(ctx, 100, database.UserPatch{Filters: &filters}); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	user, err := store.GetUser(ctx, 100)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if len(user.Filters) != 2 {
		t.Fatalf("filters = %d, want 2", len(user.Filters))
	}
	if user.Filters[1].PurchasedCount != 1 {
		t.Errorf("PurchasedCount = %d, want 1", user.Filters[1].PurchasedCount)
	}
}

func TestRecordPurchase(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	balance := int64(100)
	filters := []database.Filter{{MinPrice: 10, MaxPrice: 100, MaxRepeats: 2}}
	if _, err := store.UpdateUser(ctx, 100, database.UserPatch{Balance: &balance, Filters: &filters}); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	user, err := store.RecordPurchase(ctx, 100, 0, 60)
	if err != nil {
		t.Fatalf("RecordPurchase() error = %v", err)
	}
	if user.Balance != 40 {
		t.Errorf("Balance = %d, want 40", user.Balance)
	}
	if user.Filters[0].PurchasedCount != 1 {
		t.Errorf("PurchasedCount = %d, want 1", user.Filters[0].PurchasedCount)
	}
}

func TestRecordPurchaseInsufficientBalance(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	balance := int64(50)
	filters := []database.Filter{{MinPrice: 10, MaxPrice: 100, MaxRepeats: 2}}
	if _, err := store.UpdateUser(ctx, 100, database.UserPatch{Balance: &balance, Filters: &filters}); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	if _, err := store.RecordPurchase(ctx, 100, 0, 60); !errors.Is(err, database.ErrInsufficientBalance) {
		t.Fatalf("RecordPurchase() error = %v, want ErrInsufficientBalance", err)
	}

	user, _ := store.GetUser(ctx, 100)
	if user.Balance != 50 || user.Filters[0].PurchasedCount != 0 {
		t.Errorf("record mutated after failed purchase: %+v", user)
	}
}

func TestRecordPurchaseExhaustedFilter(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	balance := int64(500)
	filters := []database.Filter{{MinPrice: 10, MaxPrice: 100, MaxRepeats: 1, PurchasedCount: 1}}
	if _, err := store.UpdateUser(ctx, 100, database.UserPatch{Balance: &balance, Filters: &filters}); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	if _, err := store.RecordPurchase(ctx, 100, 0, 60); !errors.Is(err, database.ErrFilterExhausted) {
		t.Fatalf("RecordPurchase() error = %v, want ErrFilterExhausted", err)
	}
}

func TestRecordPurchaseBadIndex(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.UpdateUser(ctx, 100, database.UserPatch{}); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if _, err := store.RecordPurchase(ctx, 100, 0, 10); !errors.Is(err, database.ErrFilterIndex) {
		t.Fatalf("RecordPurchase() error = %v, want ErrFilterIndex", err)
	}
	if _, err := store.RecordPurchase(ctx, 999, 0, 10); !errors.Is(err, database.ErrUserNotFound) {
		t.Fatalf("RecordPurchase() error = %v, want ErrUserNotFound", err)
	}
}

func TestRecordPurchaseConcurrentDebits(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	balance := int64(100)
	filters := []database.Filter{{MinPrice: 10, MaxPrice: 100, MaxRepeats: 10}}
	if _, err := store.UpdateUser(ctx, 100, database.UserPatch{Balance: &balance, Filters: &filters}); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	// Ten concurrent 60-star purchases against a 100-star balance;
	// exactly one may succeed.
	var wg sync.WaitGroup
	successes := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.RecordPurchase(ctx, 100, 0, 60); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	if n := len(successes); n != 1 {
		t.Fatalf("successful purchases = %d, want 1", n)
	}
	user, _ := store.GetUser(ctx, 100)
	if user.Balance != 40 {
		t.Errorf("Balance = %d, want 40", user.Balance)
	}
}

func TestAddBalance(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.AddBalance(ctx, 100, 300)
	if err != nil {
		t.Fatalf("AddBalance() error = %v", err)
	}
	if user.Balance != 300 {
		t.Errorf("Balance = %d, want 300", user.Balance)
	}

	user, err = store.AddBalance(ctx, 100, -500)
	if err != nil {
		t.Fatalf("AddBalance() error = %v", err)
	}
	if user.Balance != 0 {
		t.Errorf("Balance = %d, want 0 (clamped)", user.Balance)
	}
}

func TestAppendFilter(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendFilter(ctx, 100, database.Filter{MinPrice: 1, MaxPrice: 2, MaxRepeats: 1}); err != nil {
		t.Fatalf("AppendFilter() error = %v", err)
	}
	user, err := store.AppendFilter(ctx, 100, database.Filter{MinPrice: 3, MaxPrice: 4, MaxRepeats: 1})
	if err != nil {
		t.Fatalf("AppendFilter() error = %v", err)
	}
	if len(user.Filters) != 2 {
		t.Fatalf("filters = %d, want 2", len(user.Filters))
	}
	if user.Filters[1].MinPrice != 3 {
		t.Errorf("second filter MinPrice = %d, want 3", user.Filters[1].MinPrice)
	}
}

func TestAllUsersStableOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{30, 10, 20} {
		if _, err := store.UpdateUser(ctx, id, database.UserPatch{}); err != nil {
			t.Fatalf("UpdateUser(%d) error = %v", id, err)
		}
	}

	users, err := store.AllUsers(ctx)
	if err != nil {
		t.Fatalf("AllUsers() error = %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("users = %d, want 3", len(users))
	}
	for i, want := range []int64{10, 20, 30} {
		if users[i].UserID != want {
			t.Errorf("users[%d].UserID = %d, want %d", i, users[i].UserID, want)
		}
	}
}

func TestDeactivateExpired(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	active := true
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if _, err := store.UpdateUser(ctx, 1, database.UserPatch{SubscriptionActive: &active, SubscriptionExpiresAt: &past}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpdateUser(ctx, 2, database.UserPatch{SubscriptionActive: &active, SubscriptionExpiresAt: &future}); err != nil {
		t.Fatal(err)
	}

	count, err := store.DeactivateExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeactivateExpired() error = %v", err)
	}
	if count != 1 {
		t.Errorf("deactivated = %d, want 1", count)
	}

	lapsed, _ := store.GetUser(ctx, 1)
	if lapsed.SubscriptionActive {
		t.Error("expired subscription still active")
	}
	current, _ := store.GetUser(ctx, 2)
	if !current.SubscriptionActive {
		t.Error("current subscription deactivated")
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	active := true
	future := time.Now().UTC().Add(time.Hour)
	b1, b2 := int64(100), int64(250)

	if _, err := store.UpdateUser(ctx, 1, database.UserPatch{SubscriptionActive: &active, SubscriptionExpiresAt: &future, Balance: &b1}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpdateUser(ctx, 2, database.UserPatch{Balance: &b2}); err != nil {
		t.Fatal(err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalUsers != 2 {
		t.Errorf("TotalUsers = %d, want 2", stats.TotalUsers)
	}
	if stats.ActiveSubscriptions != 1 {
		t.Errorf("ActiveSubscriptions = %d, want 1", stats.ActiveSubscriptions)
	}
	if stats.TotalBalance != 350 {
		t.Errorf("TotalBalance = %d, want 350", stats.TotalBalance)
	}
}
