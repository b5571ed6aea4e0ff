package normalization

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/armpit-symphony/pump-me-fun/internal/feed"
)

const (
	wsolMint = "So11111111111111111111111111111111111111112"
	rayMint  = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
)

var scanTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func raw(fields map[string]any) feed.RawToken {
	data, err := json.Marshal(fields)
	if err != nil {
		panic(err)
	}
	var r feed.RawToken
	if err := json.Unmarshal(data, &r); err != nil {
		panic(err)
	}
	return r
}

func TestNormalize_NumericFields(t *testing.T) {
	r := raw(map[string]any{
		"tokenAddress": wsolMint,
		"name":         "Wrapped SOL",
		"symbol":       "WSOL",
		"liquidity":    530000.5,
		"priceUsd":     0.0042,
		"txns":         120,
		"createdAt":    scanTime.Add(-6*time.Hour - 30*time.Minute).Format(time.RFC3339),
	})

	obs, err := Normalize(r, scanTime)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if obs.Address != wsolMint {
		t.Errorf("Address: got %s, want %s", obs.Address, wsolMint)
	}
	if obs.LiquidityUSD != 530000.5 {
		t.Errorf("LiquidityUSD: got %f, want 530000.5", obs.LiquidityUSD)
	}
	if obs.PriceUSD == nil || *obs.PriceUSD != 0.0042 {
		t.Errorf("PriceUSD: got %v, want 0.0042", obs.PriceUSD)
	}
	if obs.TxnCount == nil || *obs.TxnCount != 120 {
		t.Errorf("TxnCount: got %v, want 120", obs.TxnCount)
	}
	if math.Abs(obs.AgeHours-6.5) > 1e-9 {
		t.Errorf("AgeHours: got %f, want 6.5", obs.AgeHours)
	}
	if obs.AgeClamped {
		t.Error("AgeClamped should be false for a past creation time")
	}
	if !obs.ObservedAt.Equal(scanTime) {
		t.Errorf("ObservedAt: got %v, want %v", obs.ObservedAt, scanTime)
	}
}

func TestNormalize_StringTypedNumbers(t *testing.T) {
	r := raw(map[string]any{
		"tokenAddress": rayMint,
		"liquidity":    "250000",
		"priceUsd":     "1.25",
		"txns":         "42",
		"createdAt":    scanTime.Add(-24 * time.Hour).Format(time.RFC3339),
	})

	obs, err := Normalize(r, scanTime)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if obs.LiquidityUSD != 250000 {
		t.Errorf("LiquidityUSD: got %f, want 250000", obs.LiquidityUSD)
	}
	if obs.PriceUSD == nil || *obs.PriceUSD != 1.25 {
		t.Errorf("PriceUSD: got %v, want 1.25", obs.PriceUSD)
	}
	if obs.TxnCount == nil || *obs.TxnCount != 42 {
		t.Errorf("TxnCount: got %v, want 42", obs.TxnCount)
	}
}

func TestNormalize_MissingAddress(t *testing.T) {
	cases := map[string]feed.RawToken{
		"absent":     raw(map[string]any{"createdAt": scanTime.Format(time.RFC3339)}),
		"whitespace": raw(map[string]any{"tokenAddress": "   ", "createdAt": scanTime.Format(time.RFC3339)}),
	}

	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(r, scanTime)
			if !errors.Is(err, ErrMissingAddress) {
				t.Errorf("Expected ErrMissingAddress, got %v", err)
			}
		})
	}
}

func TestNormalize_BadAddress(t *testing.T) {
	cases := map[string]string{
		"invalid alphabet": "0OIl0OIl0OIl",
		"too short":        "abc",
		"too long":         wsolMint + wsolMint,
	}

	for name, addr := range cases {
		t.Run(name, func(t *testing.T) {
			r := raw(map[string]any{
				"tokenAddress": addr,
				"createdAt":    scanTime.Format(time.RFC3339),
			})
			_, err := Normalize(r, scanTime)
			if !errors.Is(err, ErrBadAddress) {
				t.Errorf("Expected ErrBadAddress, got %v", err)
			}
		})
	}
}

func TestNormalize_AbsentOptionalFields(t *testing.T) {
	r := raw(map[string]any{
		"tokenAddress": wsolMint,
		"createdAt":    scanTime.Add(-5 * time.Hour).Format(time.RFC3339),
	})

	obs, err := Normalize(r, scanTime)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if obs.LiquidityUSD != 0 {
		t.Errorf("Absent liquidity should coerce to 0, got %f", obs.LiquidityUSD)
	}
	if obs.PriceUSD != nil {
		t.Errorf("Absent price must stay nil, got %v", obs.PriceUSD)
	}
	if obs.TxnCount != nil {
		t.Errorf("Absent txns must stay nil, got %v", obs.TxnCount)
	}
	if obs.Symbol != "" || obs.Name != "" {
		t.Errorf("Absent name/symbol should stay empty, got %q %q", obs.Name, obs.Symbol)
	}
}

func TestNormalize_ZeroPriceIsNotNil(t *testing.T) {
	r := raw(map[string]any{
		"tokenAddress": wsolMint,
		"priceUsd":     0,
		"createdAt":    scanTime.Add(-5 * time.Hour).Format(time.RFC3339),
	})

	obs, err := Normalize(r, scanTime)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if obs.PriceUSD == nil {
		t.Fatal("Explicit zero price must survive as a value, not nil")
	}
	if *obs.PriceUSD != 0 {
		t.Errorf("PriceUSD: got %f, want 0", *obs.PriceUSD)
	}
}

func TestNormalize_UnparseableNumbersCoerce(t *testing.T) {
	r := raw(map[string]any{
		"tokenAddress": wsolMint,
		"liquidity":    "n/a",
		"priceUsd":     "unknown",
		"txns":         "-",
		"createdAt":    scanTime.Add(-5 * time.Hour).Format(time.RFC3339),
	})

	obs, err := Normalize(r, scanTime)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if obs.LiquidityUSD != 0 {
		t.Errorf("Unparseable liquidity should coerce to 0, got %f", obs.LiquidityUSD)
	}
	if obs.PriceUSD != nil {
		t.Errorf("Unparseable price should coerce to nil, got %v", obs.PriceUSD)
	}
	if obs.TxnCount != nil {
		t.Errorf("Unparseable txns should coerce to nil, got %v", obs.TxnCount)
	}
}

func TestNormalize_NegativeValuesReject(t *testing.T) {
	base := map[string]any{
		"tokenAddress": wsolMint,
		"createdAt":    scanTime.Add(-5 * time.Hour).Format(time.RFC3339),
	}

	cases := map[string]map[string]any{
		"liquidity": {"liquidity": -1},
		"price":     {"priceUsd": -0.01},
		"txns":      {"txns": -5},
	}

	for name, extra := range cases {
		t.Run(name, func(t *testing.T) {
			fields := map[string]any{}
			for k, v := range base {
				fields[k] = v
			}
			for k, v := range extra {
				fields[k] = v
			}
			_, err := Normalize(raw(fields), scanTime)
			if !errors.Is(err, ErrNegativeValue) {
				t.Errorf("Expected ErrNegativeValue, got %v", err)
			}
		})
	}
}

func TestNormalize_BadTimestampRejects(t *testing.T) {
	cases := map[string]any{
		"absent":  nil,
		"empty":   "",
		"garbage": "yesterday",
	}

	for name, created := range cases {
		t.Run(name, func(t *testing.T) {
			fields := map[string]any{"tokenAddress": wsolMint}
			if created != nil {
				fields["createdAt"] = created
			}
			_, err := Normalize(raw(fields), scanTime)
			if !errors.Is(err, ErrBadTimestamp) {
				t.Errorf("Expected ErrBadTimestamp, got %v", err)
			}
		})
	}
}

func TestNormalize_EpochTimestamps(t *testing.T) {
	created := scanTime.Add(-10 * time.Hour)

	cases := map[string]any{
		"unix seconds":        created.Unix(),
		"unix millis":         created.UnixMilli(),
		"unix seconds string": "1717149600", // 2024-05-31T10:00:00Z, 26h before scanTime
	}

	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			r := raw(map[string]any{"tokenAddress": wsolMint, "createdAt": v})
			obs, err := Normalize(r, scanTime)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if obs.AgeHours <= 0 {
				t.Errorf("AgeHours should be positive, got %f", obs.AgeHours)
			}
		})
	}
}

func TestNormalize_FutureCreationClampsAge(t *testing.T) {
	r := raw(map[string]any{
		"tokenAddress": wsolMint,
		"createdAt":    scanTime.Add(30 * time.Minute).Format(time.RFC3339),
	})

	obs, err := Normalize(r, scanTime)
	if err != nil {
		t.Fatalf("Clock skew must not reject: %v", err)
	}
	if obs.AgeHours != 0 {
		t.Errorf("AgeHours should clamp to 0, got %f", obs.AgeHours)
	}
	if !obs.AgeClamped {
		t.Error("AgeClamped should be set on clock skew")
	}
}

func TestNormalize_TrimsNameAndSymbol(t *testing.T) {
	r := raw(map[string]any{
		"tokenAddress": wsolMint,
		"name":         "  Gem Token  ",
		"symbol":       " GEM ",
		"createdAt":    scanTime.Add(-5 * time.Hour).Format(time.RFC3339),
	})

	obs, err := Normalize(r, scanTime)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if obs.Name != "Gem Token" {
		t.Errorf("Name: got %q, want %q", obs.Name, "Gem Token")
	}
	if obs.Symbol != "GEM" {
		t.Errorf("Symbol: got %q, want %q", obs.Symbol, "GEM")
	}
}
