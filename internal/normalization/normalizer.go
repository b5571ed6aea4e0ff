package normalization

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/armpit-symphony/pump-me-fun/internal/domain"
	"github.com/armpit-symphony/pump-me-fun/internal/feed"
)

// Validation errors. A failed record is skipped for the cycle; it never
// aborts the scan.
var (
	ErrMissingAddress = errors.New("missing token address")
	ErrBadAddress     = errors.New("malformed token address")
	ErrBadTimestamp   = errors.New("missing or malformed creation timestamp")
	ErrNegativeValue  = errors.New("negative market value")
)

// mintByteLen is the decoded size of a Solana public key.
const mintByteLen = 32

// Normalize converts one raw feed record into a TokenObservation.
//
// Coercion rules:
//   - address: required, must decode as base58 to 32 bytes
//   - liquidity: absent or unparseable -> 0; negative -> reject
//   - price: absent or unparseable -> nil, never 0; negative -> reject
//   - txn count: absent or unparseable -> nil; negative -> reject
//   - createdAt: absent or unparseable -> reject; a creation time after
//     scanTime clamps age to 0 and sets AgeClamped instead of rejecting
func Normalize(raw feed.RawToken, scanTime time.Time) (*domain.TokenObservation, error) {
	address := strings.TrimSpace(raw.TokenAddress)
	if address == "" {
		return nil, ErrMissingAddress
	}

	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadAddress, address, err)
	}
	if len(decoded) != mintByteLen {
		return nil, fmt.Errorf("%w: %q decodes to %d bytes", ErrBadAddress, address, len(decoded))
	}

	liquidity, ok := parseFloat(raw.Liquidity)
	if !ok {
		liquidity = 0
	}
	if liquidity < 0 {
		return nil, fmt.Errorf("%w: liquidity %f for %s", ErrNegativeValue, liquidity, address)
	}

	var price *float64
	if v, ok := parseFloat(raw.PriceUSD); ok {
		if v < 0 {
			return nil, fmt.Errorf("%w: price %f for %s", ErrNegativeValue, v, address)
		}
		price = &v
	}

	var txns *int64
	if v, ok := parseInt(raw.Txns); ok {
		if v < 0 {
			return nil, fmt.Errorf("%w: txn count %d for %s", ErrNegativeValue, v, address)
		}
		txns = &v
	}

	createdAt, ok := parseTime(raw.CreatedAt)
	if !ok {
		return nil, fmt.Errorf("%w: %q for %s", ErrBadTimestamp, string(raw.CreatedAt), address)
	}

	ageHours := scanTime.Sub(createdAt).Hours()
	clamped := false
	if ageHours < 0 {
		ageHours = 0
		clamped = true
	}

	return &domain.TokenObservation{
		Address:      address,
		Symbol:       strings.TrimSpace(raw.Symbol),
		Name:         strings.TrimSpace(raw.Name),
		LiquidityUSD: liquidity,
		PriceUSD:     price,
		TxnCount:     txns,
		AgeHours:     ageHours,
		AgeClamped:   clamped,
		ObservedAt:   scanTime,
	}, nil
}

// parseFloat reads a JSON number or numeric string. Absent, null, empty and
// non-numeric values report ok=false.
func parseFloat(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseInt reads a JSON integer, accepting the same loose encodings as
// parseFloat. Fractional values truncate toward zero.
func parseInt(raw json.RawMessage) (int64, bool) {
	v, ok := parseFloat(raw)
	if !ok {
		return 0, false
	}
	return int64(v), true
}

// parseTime reads an RFC3339 string or a Unix epoch (string or number).
// Epoch values above 1e11 are treated as milliseconds.
func parseTime(raw json.RawMessage) (time.Time, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}, false
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil && epoch > 0 {
		if epoch > 1e11 {
			return time.UnixMilli(epoch).UTC(), true
		}
		return time.Unix(epoch, 0).UTC(), true
	}
	return time.Time{}, false
}
