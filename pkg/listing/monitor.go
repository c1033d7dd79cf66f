package listing

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Overview is the market summary above the listing table.
type Overview struct {
	TotalCredits int             `json:"totalCredits"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
	Listings     int             `json:"listings"`
	ByStatus     map[Status]int  `json:"byStatus"`
}

func (s *Store) Overview() Overview {
	ov := Overview{
		Listings: len(s.items),
		ByStatus: map[Status]int{
			StatusEncrypted: 0,
			StatusPending:   0,
			StatusValidated: 0,
		},
	}
	sum := decimal.Zero
	for _, it := range s.items {
		ov.TotalCredits += it.Quantity
		ov.ByStatus[it.Status]++
		sum = sum.Add(it.UnitPrice)
	}
	if len(s.items) > 0 {
		ov.AveragePrice = sum.Div(decimal.NewFromInt(int64(len(s.items)))).Round(2)
	}
	return ov
}

// Progress describes how far a batch is through validation.
type Progress struct {
	Status  Status `json:"status"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

func ProgressOf(status Status) Progress {
	switch status {
	case StatusEncrypted:
		return Progress{status, 25, "Credit is encrypted and awaiting initial verification"}
	case StatusPending:
		return Progress{status, 75, "Under review by verifier node"}
	case StatusValidated:
		return Progress{status, 100, "Credit validated and ready for trading"}
	default:
		return Progress{status, 0, "Unknown status"}
	}
}

// Watchlist is the set of listings being monitored for validation updates.
type Watchlist struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewWatchlist() *Watchlist {
	return &Watchlist{ids: make(map[string]struct{})}
}

// Watch returns false if id was already watched.
func (w *Watchlist) Watch(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.ids[id]; ok {
		return false
	}
	w.ids[id] = struct{}{}
	return true
}

// Unwatch returns false if id was not watched.
func (w *Watchlist) Unwatch(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.ids[id]; !ok {
		return false
	}
	delete(w.ids, id)
	return true
}

func (w *Watchlist) IsWatching(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.ids[id]
	return ok
}

func (w *Watchlist) IDs() []string {
	w.mu.RLock()
	out := make([]string, 0, len(w.ids))
	for id := range w.ids {
		out = append(out, id)
	}
	w.mu.RUnlock()
	sort.Strings(out)
	return out
}
