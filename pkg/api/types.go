package api

import (
	"github.com/uhyunpark/leaftrade/pkg/listing"
	"github.com/uhyunpark/leaftrade/pkg/tracker"
)

// API request and response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// ListingDetail is one listing with its validation progress
type ListingDetail struct {
	listing.Item
	Progress listing.Progress `json:"progress"`
	Watching bool             `json:"watching"`
}

// QuoteResponse previews a purchase
type QuoteResponse struct {
	listing.Quote
	Summary string `json:"summary"` // "Purchased N CCT from X for $T"
}

// WatchResponse is returned by POST/DELETE /listings/{id}/watch
type WatchResponse struct {
	ListingID string           `json:"listingId"`
	Watching  bool             `json:"watching"`
	Progress  listing.Progress `json:"progress"`
	Watchlist []string         `json:"watchlist"`
}

// SubmissionResponse wraps a tracker snapshot
type SubmissionResponse struct {
	Submission tracker.Snapshot `json:"submission"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SubmissionErrorResponse is returned when the chain refused a write. The
// submission is already Failed.
type SubmissionErrorResponse struct {
	ErrorResponse
	Submission tracker.Snapshot `json:"submission"`
}

// ==============================
// REST Request Types
// ==============================

// CreateTradeRequest is the payload for POST /api/v1/trades. Fields are kept
// as strings so that empty and malformed input is reported per field.
type CreateTradeRequest struct {
	Amount      string `json:"amount"`
	Price       string `json:"price"`
	TradeType   string `json:"tradeType"` // "0" buy, "1" sell
	AssetSymbol string `json:"assetSymbol"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the envelope for every server-to-client message
type WSMessage struct {
	Type    string      `json:"type"`              // "submission", "wallet", "subscribed", "unsubscribed"
	Channel string      `json:"channel,omitempty"` // e.g. "submission:<id>"
	Data    interface{} `json:"data"`
}

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g. ["submissions", "submission:<id>"]
}

const (
	ChannelSubmissions      = "submissions"
	ChannelSubmissionPrefix = "submission:"
	ChannelWallet           = "wallet"
)
