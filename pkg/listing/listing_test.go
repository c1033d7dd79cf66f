package listing

import (
	"math"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDefault_Catalogue(t *testing.T) {
	s := Default()
	items := s.All()
	require.Len(t, items, 3)

	for _, it := range items {
		assert.True(t, it.Status.Valid(), "listing %s", it.ID)
	}

	solar, err := s.Get("CCT-002")
	require.NoError(t, err)
	assert.Equal(t, "Solar Farm Mexico", solar.Project)
	assert.Equal(t, 300, solar.Quantity)
	assert.True(t, solar.UnitPrice.Equal(decimal.RequireFromString("28.75")))
	assert.True(t, solar.Tradeable())
}

func TestStore_AllReturnsCopy(t *testing.T) {
	s := Default()
	items := s.All()
	items[0].Quantity = 0

	again, err := s.Get(items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 150, again.Quantity)
}

func TestNewStore_Rejects(t *testing.T) {
	_, err := NewStore([]Item{{ID: "X", Status: "sold"}})
	assert.Error(t, err)

	_, err = NewStore([]Item{
		{ID: "X", Status: StatusPending},
		{ID: "X", Status: StatusPending},
	})
	assert.Error(t, err)

	_, err = NewStore([]Item{{ID: "X", Status: StatusPending, Quantity: -1}})
	assert.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	_, err := Default().Get("CCT-999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuote(t *testing.T) {
	s := Default()
	tests := []struct {
		name  string
		raw   string
		qty   int
		total string
	}{
		{"within range", "4", 4, "115"},
		{"above available clamps", "1000", 300, "8625"},
		{"zero becomes one", "0", 1, "28.75"},
		{"negative becomes one", "-3", 1, "28.75"},
		{"garbage becomes one", "lots", 1, "28.75"},
		{"empty becomes one", "", 1, "28.75"},
		{"fraction truncates", "3.7", 3, "86.25"},
		{"trailing junk ignored", "12abc", 12, "345"},
		{"padded", "  7 ", 7, "201.25"},
		{"huge clamps", "99999999999999999999", 300, "8625"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := s.Quote("CCT-002", tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.qty, q.Quantity)
			assert.Equal(t, 300, q.Available)
			assert.True(t, q.Total.Equal(decimal.RequireFromString(tt.total)), "total %s", q.Total)
		})
	}
}

func TestQuote_Summary(t *testing.T) {
	q, err := Default().Quote("CCT-002", "2")
	require.NoError(t, err)
	assert.Equal(t, "Purchased 2 CCT from Solar Farm Mexico for $57.50", q.Summary())
}

func TestQuote_NotTradeable(t *testing.T) {
	_, err := Default().Quote("CCT-001", "1")
	assert.ErrorIs(t, err, ErrNotTradeable)

	_, err = Default().Quote("nope", "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseQuantity(t *testing.T) {
	tests := map[string]int{
		"5":     5,
		"+5":    5,
		"-5":    -5,
		"3.7":   3,
		"12abc": 12,
		"007":   7,
		"0":     1,
		"-0":    1,
		"abc":   1,
		"":      1,
		"-":     1,
		".5":    1,
	}
	for raw, want := range tests {
		assert.Equal(t, want, parseQuantity(raw), "parseQuantity(%q)", raw)
	}
	assert.Equal(t, math.MaxInt32, parseQuantity("999999999999"))
}

func TestQuote_SoldOut(t *testing.T) {
	s, err := NewStore([]Item{{
		ID:        "CCT-100",
		Project:   "Peatland Rewetting",
		Quantity:  0,
		UnitPrice: decimal.RequireFromString("12"),
		Status:    StatusValidated,
	}})
	require.NoError(t, err)

	_, err = s.Quote("CCT-100", "5")
	assert.ErrorIs(t, err, ErrSoldOut)
	assert.ErrorIs(t, err, ErrNotTradeable)
	assert.Equal(t, 0, ClampQuantity(5, 0))
}

func TestClampQuantity_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		available := rapid.IntRange(1, 10_000).Draw(t, "available")
		requested := rapid.IntRange(-100, 20_000).Draw(t, "requested")

		got := ClampQuantity(requested, available)
		if got < 1 || got > available {
			t.Fatalf("ClampQuantity(%d, %d) = %d out of range", requested, available, got)
		}
		if requested > available && got != available {
			t.Fatalf("ClampQuantity(%d, %d) = %d, want available", requested, available, got)
		}
		if requested >= 1 && requested <= available && got != requested {
			t.Fatalf("ClampQuantity(%d, %d) = %d, want requested", requested, available, got)
		}
		if got := ClampQuantity(requested, 0); got != 0 {
			t.Fatalf("ClampQuantity(%d, 0) = %d, want 0", requested, got)
		}
	})
}

func TestQuote_ClampProperty(t *testing.T) {
	s := Default()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(301, 1_000_000).Draw(t, "n")
		q, err := s.Quote("CCT-002", strconv.Itoa(n))
		if err != nil {
			t.Fatal(err)
		}
		if q.Quantity != 300 {
			t.Fatalf("quantity = %d, want 300", q.Quantity)
		}
	})
}

func TestOverview(t *testing.T) {
	ov := Default().Overview()
	assert.Equal(t, 525, ov.TotalCredits)
	assert.Equal(t, 3, ov.Listings)
	assert.Equal(t, 1, ov.ByStatus[StatusValidated])
	assert.Equal(t, 1, ov.ByStatus[StatusPending])
	assert.Equal(t, 1, ov.ByStatus[StatusEncrypted])
	assert.True(t, ov.AveragePrice.Equal(decimal.RequireFromString("28.48")), "avg %s", ov.AveragePrice)
}

func TestProgressOf(t *testing.T) {
	assert.Equal(t, 25, ProgressOf(StatusEncrypted).Percent)
	assert.Equal(t, 75, ProgressOf(StatusPending).Percent)
	assert.Equal(t, 100, ProgressOf(StatusValidated).Percent)
	assert.Equal(t, "Unknown status", ProgressOf("lost").Message)
}

func TestWatchlist(t *testing.T) {
	w := NewWatchlist()
	assert.True(t, w.Watch("CCT-003"))
	assert.False(t, w.Watch("CCT-003"))
	assert.True(t, w.Watch("CCT-001"))
	assert.Equal(t, []string{"CCT-001", "CCT-003"}, w.IDs())
	assert.True(t, w.IsWatching("CCT-003"))

	assert.True(t, w.Unwatch("CCT-003"))
	assert.False(t, w.Unwatch("CCT-003"))
	assert.False(t, w.IsWatching("CCT-003"))
}
