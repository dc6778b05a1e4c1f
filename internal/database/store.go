package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Sentinel errors returned by RecordPurchase when the locked re-check fails.
var (
	// ErrUserNotFound indicates the user record does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInsufficientBalance indicates the balance no longer covers the price.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrFilterExhausted indicates the filter has no remaining purchase capacity.
	ErrFilterExhausted = errors.New("filter exhausted")
	// ErrFilterIndex indicates the filter index is out of range.
	ErrFilterIndex = errors.New("filter index out of range")
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
//
// All writes to a given user are serialized internally, so concurrent
// callers never lose updates to each other.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetUser retrieves a user by ID. Returns nil, nil if not found.
	GetUser(ctx context.Context, userID int64) (*User, error)

	// AllUsers retrieves every user, ordered by user ID.
	AllUsers(ctx context.Context) ([]User, error)

	// UpdateUser applies a partial update to a user record, creating the
	// default record first when none exists. Returns the updated record.
	UpdateUser(ctx context.Context, userID int64, patch UserPatch) (*User, error)

	// AddBalance credits (or with a negative delta debits) the user's
	// balance inside the per-user critical section and returns the
	// updated record. The balance never goes below zero.
	AddBalance(ctx context.Context, userID int64, delta int64) (*User, error)

	// AppendFilter adds a filter to the end of the user's list inside
	// the per-user critical section.
	AppendFilter(ctx context.Context, userID int64, filter Filter) (*User, error)

	// RecordPurchase debits price from the user's balance and increments
	// the purchase counter of the filter at filterIndex, re-checking both
	// preconditions inside the per-user critical section. On any failed
	// check the record is left untouched and a sentinel error is returned.
	RecordPurchase(ctx context.Context, userID int64, filterIndex int, price int64) (*User, error)

	// Stats returns aggregate totals for the admin stats command.
	Stats(ctx context.Context) (*Stats, error)

	// DeactivateExpired clears the active flag on subscriptions whose
	// expiry has passed and returns the number of records touched.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		locks:  make(map[int64]*sync.Mutex),
	}
}

// userLock returns the mutex serializing writes for one user.
func (s *sqlxStore) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `user_id, created_at, updated_at, language, subscription_active,
       subscription_expires_at, balance, channel_id, channel_access_hash, filters`

// GetUser retrieves a user by ID. Returns nil, nil if not found.
func (s *sqlxStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var user User
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = ?`

	err := s.db.GetContext(ctx, &user, query, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No user found", "user_id", userID)
		return nil, nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user by ID", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	if err := user.decodeFilters(); err != nil {
		s.logger.WarnContext(ctx, "Stored filters unreadable, treating as empty", "user_id", userID, "error", err)
		user.Filters = []Filter{}
	}
	return &user, nil
}

// AllUsers retrieves every user, ordered by user ID. The stable order
// gives the purchase engine a deterministic per-cycle snapshot.
func (s *sqlxStore) AllUsers(ctx context.Context) ([]User, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var users []User
	query := `SELECT ` + userColumns + ` FROM users ORDER BY user_id ASC`

	if err := s.db.SelectContext(ctx, &users, query); err != nil {
		s.logger.ErrorContext(ctx, "Error getting all users", "error", err)
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}

	for i := range users {
		if err := users[i].decodeFilters(); err != nil {
			s.logger.WarnContext(ctx, "Stored filters unreadable, treating as empty",
				"user_id", users[i].UserID, "error", err)
			users[i].Filters = []Filter{}
		}
	}

	s.logger.DebugContext(ctx, "Fetched all users", "count", len(users))
	return users, nil
}

// UpdateUser applies a partial update under the per-user lock using a
// read-merge-write cycle. An empty patch on an unknown ID creates the
// default record, which is how first contact registers a user.
func (s *sqlxStore) UpdateUser(ctx context.Context, userID int64, patch UserPatch) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := user == nil
	if created {
		user = newUser(userID, now)
	}

	patch.apply(user)
	user.UpdatedAt = now

	if err := s.saveUser(ctx, user, created); err != nil {
		return nil, err
	}

	operation := "updated"
	if created {
		operation = "created"
	}
	s.logger.DebugContext(ctx, "User saved successfully", "operation", operation, "user_id", userID)
	return user, nil
}

// AddBalance credits the user's balance under the per-user lock,
// creating the record first for unknown users. A negative delta debits;
// the result is clamped at zero.
func (s *sqlxStore) AddBalance(ctx context.Context, userID int64, delta int64) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := user == nil
	if created {
		user = newUser(userID, now)
	}

	user.Balance += delta
	if user.Balance < 0 {
		user.Balance = 0
	}
	user.UpdatedAt = now

	if err := s.saveUser(ctx, user, created); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Balance adjusted", "user_id", userID, "delta", delta, "balance", user.Balance)
	return user, nil
}

// AppendFilter adds a filter to the end of the user's list under the
// per-user lock, so a concurrent purchase cannot clobber the change.
func (s *sqlxStore) AppendFilter(ctx context.Context, userID int64, filter Filter) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := user == nil
	if created {
		user = newUser(userID, now)
	}

	user.Filters = append(user.Filters, filter)
	user.UpdatedAt = now

	if err := s.saveUser(ctx, user, created); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "Filter appended", "user_id", userID, "filters", len(user.Filters))
	return user, nil
}

// RecordPurchase performs the engine's atomic debit and counter bump.
// The balance and capacity checks run again inside the critical section
// so a concurrent deposit or filter edit cannot be lost or double spent.
func (s *sqlxStore) RecordPurchase(ctx context.Context, userID int64, filterIndex int, price int64) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}
	if price < 0 {
		return nil, fmt.Errorf("price cannot be negative")
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("recording purchase for user %d: %w", userID, ErrUserNotFound)
	}
	if filterIndex < 0 || filterIndex >= len(user.Filters) {
		return nil, fmt.Errorf("recording purchase for user %d, filter %d: %w", userID, filterIndex, ErrFilterIndex)
	}
	if user.Balance < price {
		return nil, fmt.Errorf("recording purchase for user %d: %w", userID, ErrInsufficientBalance)
	}
	if user.Filters[filterIndex].Exhausted() {
		return nil, fmt.Errorf("recording purchase for user %d, filter %d: %w", userID, filterIndex, ErrFilterExhausted)
	}

	user.Balance -= price
	user.Filters[filterIndex].PurchasedCount++
	user.UpdatedAt = time.Now().UTC()

	if err := s.saveUser(ctx, user, false); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Purchase recorded",
		"user_id", userID, "filter_index", filterIndex, "price", price, "balance", user.Balance)
	return user, nil
}

// saveUser persists the whole record, inserting or updating as needed.
// Callers hold the per-user lock.
func (s *sqlxStore) saveUser(ctx context.Context, user *User, created bool) error {
	if err := user.encodeFilters(); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving user",
			"user_id", user.UserID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	var result sql.Result
	if created {
		query := `
			INSERT INTO users (
				user_id, created_at, updated_at, language, subscription_active,
				subscription_expires_at, balance, channel_id, channel_access_hash, filters
			) VALUES (
				:user_id, :created_at, :updated_at, :language, :subscription_active,
				:subscription_expires_at, :balance, :channel_id, :channel_access_hash, :filters
			)
		`
		result, err = tx.NamedExecContext(ctx, query, user)
	} else {
		query := `
			UPDATE users SET
				updated_at = :updated_at,
				language = :language,
				subscription_active = :subscription_active,
				subscription_expires_at = :subscription_expires_at,
				balance = :balance,
				channel_id = :channel_id,
				channel_access_hash = :channel_access_hash,
				filters = :filters
			WHERE user_id = :user_id
		`
		result, err = tx.NamedExecContext(ctx, query, user)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving user", "user_id", user.UserID, "error", err)
		return fmt.Errorf("failed to save user %d: %w", user.UserID, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected != 1 {
		s.logger.WarnContext(ctx, "Unexpected number of rows affected when saving user",
			"user_id", user.UserID, "affected", affected)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "user_id", user.UserID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

// Stats returns aggregate totals for the admin stats command.
func (s *sqlxStore) Stats(ctx context.Context) (*Stats, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var stats Stats
	query := `
		SELECT COUNT(*) AS total_users,
		       COALESCE(SUM(subscription_active), 0) AS active_subscriptions,
		       COALESCE(SUM(balance), 0) AS total_balance
		FROM users
	`
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		s.logger.ErrorContext(ctx, "Error collecting store stats", "error", err)
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return &stats, nil
}

// DeactivateExpired clears subscription_active on lapsed subscriptions.
// Run from the scheduler; the engine also checks expiry per cycle, so
// this sweep only keeps stored state honest.
func (s *sqlxStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	query := `
		UPDATE users
		SET subscription_active = 0, updated_at = ?
		WHERE subscription_active = 1
		  AND subscription_expires_at IS NOT NULL
		  AND subscription_expires_at <= ?
	`
	result, err := s.db.ExecContext(ctx, query, now.UTC(), now.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deactivating expired subscriptions", "error", err)
		return 0, fmt.Errorf("failed to deactivate expired subscriptions: %w", err)
	}

	count, _ := result.RowsAffected()
	if count > 0 {
		s.logger.InfoContext(ctx, "Deactivated expired subscriptions", "count", count)
	}
	return count, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
