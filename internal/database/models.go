package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Filter is a single purchase rule in a user's ordered filter list.
// A gift matches when its price falls inside [MinPrice, MaxPrice] and
// the filter still has capacity (PurchasedCount < MaxRepeats).
type Filter struct {
	MinPrice       int64 `json:"min_price"`
	MaxPrice       int64 `json:"max_price"`
	MaxRepeats     int64 `json:"max_repeats"`
	PurchasedCount int64 `json:"purchased_count"`
}

// Exhausted reports whether the filter has used up its purchase budget.
// Exhausted filters stay in the list so their counters remain visible.
func (f Filter) Exhausted() bool {
	return f.PurchasedCount >= f.MaxRepeats
}

// User represents a registered user of the gift watcher: subscription
// state, star balance, the delivery channel credentials, and the ordered
// purchase filters. Filters are persisted as a JSON document in a single
// column; the decoded slice lives in Filters.
type User struct {
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Language              string         `db:"language"`
	SubscriptionActive    bool           `db:"subscription_active"`
	SubscriptionExpiresAt sql.NullTime   `db:"subscription_expires_at"`
	Balance               int64          `db:"balance"`
	ChannelID             sql.NullString `db:"channel_id"`
	ChannelAccessHash     sql.NullString `db:"channel_access_hash"`
	FiltersJSON           string         `db:"filters"`

	Filters []Filter `db:"-"`
}

// SubscriptionCurrent reports whether the user has an active,
// unexpired subscription at the given instant.
func (u *User) SubscriptionCurrent(now time.Time) bool {
	return u.SubscriptionActive &&
		u.SubscriptionExpiresAt.Valid &&
		u.SubscriptionExpiresAt.Time.After(now)
}

// ChannelProvisioned reports whether both delivery channel credentials
// are present. The engine skips users without a provisioned channel.
func (u *User) ChannelProvisioned() bool {
	return u.ChannelID.Valid && u.ChannelID.String != "" &&
		u.ChannelAccessHash.Valid && u.ChannelAccessHash.String != ""
}

// decodeFilters populates Filters from the stored JSON column.
func (u *User) decodeFilters() error {
	if u.FiltersJSON == "" {
		u.Filters = []Filter{}
		return nil
	}
	if err := json.Unmarshal([]byte(u.FiltersJSON), &u.Filters); err != nil {
		return fmt.Errorf("failed to decode filters for user %d: %w", u.UserID, err)
	}
	if u.Filters == nil {
		u.Filters = []Filter{}
	}
	return nil
}

// encodeFilters serializes Filters back into the JSON column before a write.
func (u *User) encodeFilters() error {
	if u.Filters == nil {
		u.Filters = []Filter{}
	}
	raw, err := json.Marshal(u.Filters)
	if err != nil {
		return fmt.Errorf("failed to encode filters for user %d: %w", u.UserID, err)
	}
	u.FiltersJSON = string(raw)
	return nil
}

// UserPatch describes a partial update to a user record. Nil fields are
// left untouched; set fields replace the stored value. An all-nil patch
// still creates the record when it does not exist yet.
type UserPatch struct {
	Language              *string
	SubscriptionActive    *bool
	SubscriptionExpiresAt *time.Time
	Balance               *int64
	ChannelID             *string
	ChannelAccessHash     *string
	Filters               *[]Filter
}

func (p UserPatch) apply(u *User) {
	if p.Language != nil {
		u.Language = *p.Language
	}
	if p.SubscriptionActive != nil {
		u.SubscriptionActive = *p.SubscriptionActive
	}
	if p.SubscriptionExpiresAt != nil {
		u.SubscriptionExpiresAt = sql.NullTime{Time: *p.SubscriptionExpiresAt, Valid: true}
	}
	if p.Balance != nil {
		u.Balance = *p.Balance
	}
	if p.ChannelID != nil {
		u.ChannelID = sql.NullString{String: *p.ChannelID, Valid: true}
	}
	if p.ChannelAccessHash != nil {
		u.ChannelAccessHash = sql.NullString{String: *p.ChannelAccessHash, Valid: true}
	}
	if p.Filters != nil {
		u.Filters = append([]Filter(nil), (*p.Filters)...)
	}
}

// newUser returns the default record created on first contact.
func newUser(id int64, now time.Time) *User {
	return &User{
		UserID:    id,
		CreatedAt: now,
		UpdatedAt: now,
		Language:  "en",
		Filters:   []Filter{},
	}
}

// Stats summarizes the store for the admin dashboard command.
type Stats struct {
	TotalUsers          int64 `db:"total_users"`
	ActiveSubscriptions int64 `db:"active_subscriptions"`
	TotalBalance        int64 `db:"total_balance"`
}
