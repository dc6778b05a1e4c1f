package userbot

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestParseChannelRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		channelID string
		hash      string
		wantID    int64
		wantHash  int64
		wantErr   bool
	}{
		{
			name:      "stored form with leading minus",
			channelID: "-2233445566",
			hash:      "778899",
			wantID:    2233445566,
			wantHash:  778899,
		},
		{
			name:      "bare numeric id",
			channelID: "2233445566",
			hash:      "-12345",
			wantID:    2233445566,
			wantHash:  -12345,
		},
		{
			name:      "non numeric id",
			channelID: "abc",
			hash:      "1",
			wantErr:   true,
		},
		{
			name:      "non numeric hash",
			channelID: "-123",
			hash:      "xyz",
			wantErr:   true,
		},
		{
			name:      "empty id",
			channelID: "",
			hash:      "1",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, hash, err := parseChannelRef(tt.channelID, tt.hash)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseChannelRef() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseChannelRef() error = %v", err)
			}
			if id != tt.wantID || hash != tt.wantHash {
				t.Errorf("parseChannelRef() = (%d, %d), want (%d, %d)", id, hash, tt.wantID, tt.wantHash)
			}
		})
	}
}

func TestQuotesExactPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prices []tg.LabeledPrice
		want   int64
		ok     bool
	}{
		{
			name:   "single line exact amount",
			prices: []tg.LabeledPrice{{Label: "Gift", Amount: 500}},
			want:   500,
			ok:     true,
		},
		{
			name:   "single line wrong amount",
			prices: []tg.LabeledPrice{{Label: "Gift", Amount: 600}},
			want:   500,
			ok:     false,
		},
		{
			name: "extra price line",
			prices: []tg.LabeledPrice{
				{Label: "Gift", Amount: 500},
				{Label: "Fee", Amount: 1},
			},
			want: 500,
			ok:   false,
		},
		{
			name:   "no price lines",
			prices: nil,
			want:   500,
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			inv := tg.Invoice{Prices: tt.prices}
			if got := quotesExactPrice(inv, tt.want); got != tt.ok {
				t.Errorf("quotesExactPrice() = %v, want %v", got, tt.ok)
			}
		})
	}
}

func TestChannelFromUpdates(t *testing.T) {
	t.Parallel()

	ch := &tg.Channel{ID: 42, AccessHash: 99}

	got, err := channelFromUpdates(&tg.Updates{Chats: []tg.ChatClass{ch}})
	if err != nil {
		t.Fatalf("channelFromUpdates() error = %v", err)
	}
	if got.ID != 42 {
		t.Errorf("ID = %d, want 42", got.ID)
	}

	if _, err := channelFromUpdates(&tg.Updates{}); err == nil {
		t.Error("channelFromUpdates() with no chats: error = nil, want error")
	}
	if _, err := channelFromUpdates(&tg.UpdatesTooLong{}); err == nil {
		t.Error("channelFromUpdates() with wrong type: error = nil, want error")
	}
}
