package listing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("listing not found")
	ErrNotTradeable = errors.New("listing is not validated for trading")
	ErrSoldOut      = fmt.Errorf("%w: no credits available", ErrNotTradeable)
)

// Status of a credit batch as reported by its verifier node.
type Status string

const (
	StatusEncrypted Status = "encrypted"
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
)

func (s Status) Valid() bool {
	switch s {
	case StatusEncrypted, StatusPending, StatusValidated:
		return true
	}
	return false
}

// Item is one tradeable carbon-credit batch.
type Item struct {
	ID        string          `json:"id"`
	Project   string          `json:"project"`
	Quantity  int             `json:"credits"`
	UnitPrice decimal.Decimal `json:"price"`
	Status    Status          `json:"status"`
	Verifier  string          `json:"verifier"`
}

// Tradeable reports whether the item may be purchased. Only validated
// batches can; the rest can only be monitored.
func (i Item) Tradeable() bool { return i.Status == StatusValidated }

// Store is read-only. It is built once and never mutated.
type Store struct {
	items []Item
	byID  map[string]int
}

// NewStore copies items into a store. IDs must be unique and statuses valid.
func NewStore(items []Item) (*Store, error) {
	s := &Store{
		items: make([]Item, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	for i, it := range items {
		if !it.Status.Valid() {
			return nil, fmt.Errorf("listing %s: invalid status %q", it.ID, it.Status)
		}
		if it.Quantity < 0 {
			return nil, fmt.Errorf("listing %s: negative quantity", it.ID)
		}
		if _, dup := s.byID[it.ID]; dup {
			return nil, fmt.Errorf("listing %s: duplicate id", it.ID)
		}
		s.items[i] = it
		s.byID[it.ID] = i
	}
	return s, nil
}

// Default returns the dashboard's three mock batches.
func Default() *Store {
	s, err := NewStore([]Item{
		{
			ID:        "CCT-001",
			Project:   "Amazon Reforestation",
			Quantity:  150,
			UnitPrice: decimal.RequireFromString("25.50"),
			Status:    StatusEncrypted,
			Verifier:  "Node #47",
		},
		{
			ID:        "CCT-002",
			Project:   "Solar Farm Mexico",
			Quantity:  300,
			UnitPrice: decimal.RequireFromString("28.75"),
			Status:    StatusValidated,
			Verifier:  "Node #23",
		},
		{
			ID:        "CCT-003",
			Project:   "Wind Energy Denmark",
			Quantity:  75,
			UnitPrice: decimal.RequireFromString("31.20"),
			Status:    StatusPending,
			Verifier:  "Node #91",
		},
	})
	if err != nil {
		panic(err)
	}
	return s
}

// All returns a copy of every item in catalogue order.
func (s *Store) All() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Get(id string) (Item, error) {
	i, ok := s.byID[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.items[i], nil
}

// Quote previews a purchase of raw credits from listing id.
type Quote struct {
	ListingID string          `json:"listingId"`
	Project   string          `json:"project"`
	Requested string          `json:"requested"`
	Quantity  int             `json:"quantity"`
	Available int             `json:"available"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Total     decimal.Decimal `json:"total"`
}

// Summary is the confirmation line shown after a purchase.
func (q Quote) Summary() string {
	return fmt.Sprintf("Purchased %d CCT from %s for $%s", q.Quantity, q.Project, q.Total.StringFixed(2))
}

// Quote clamps the requested quantity to [1, available]. raw is read like a
// form field: leading digits count, and input without any (or zero) counts
// as 1. A validated batch with nothing left is refused with ErrSoldOut.
func (s *Store) Quote(id, raw string) (Quote, error) {
	item, err := s.Get(id)
	if err != nil {
		return Quote{}, err
	}
	if !item.Tradeable() {
		return Quote{}, fmt.Errorf("%w: %s is %s", ErrNotTradeable, id, item.Status)
	}
	if item.Quantity < 1 {
		return Quote{}, fmt.Errorf("%w: %s", ErrSoldOut, id)
	}

	qty := ClampQuantity(parseQuantity(raw), item.Quantity)
	return Quote{
		ListingID: item.ID,
		Project:   item.Project,
		Requested: raw,
		Quantity:  qty,
		Available: item.Quantity,
		UnitPrice: item.UnitPrice,
		Total:     item.UnitPrice.Mul(decimal.NewFromInt(int64(qty))),
	}, nil
}

// ClampQuantity bounds requested to [1, available]. With nothing available
// it returns 0.
func ClampQuantity(requested, available int) int {
	if available < 1 {
		return 0
	}
	if requested > available {
		requested = available
	}
	if requested < 1 {
		requested = 1
	}
	return requested
}

// parseQuantity reads an optional sign and the leading decimal digits of raw,
// so "3.7" is 3 and "12abc" is 12. No digits, or a value of 0, gives 1.
// Magnitudes saturate at MaxInt32.
func parseQuantity(raw string) int {
	s := strings.TrimSpace(raw)
	sign := 1
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}

	n, digits := 0, 0
	for ; digits < len(s) && s[digits] >= '0' && s[digits] <= '9'; digits++ {
		if n > (math.MaxInt32-9)/10 {
			n = math.MaxInt32
			continue
		}
		n = n*10 + int(s[digits]-'0')
	}
	if digits == 0 || n == 0 {
		return 1
	}
	return sign * n
}
