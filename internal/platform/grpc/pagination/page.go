// Package pagination normalizes list request parameters and page tokens.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// OrderByConfig configures order_by validation.
type OrderByConfig struct {
	Default string
	Allowed []string
}

// ClampPageSize applies the default to non-positive sizes and caps at Max.
func ClampPageSize(value int32, cfg PageSizeConfig) int {
	size := int(value)
	if size <= 0 {
		size = cfg.Default
	}
	if cfg.Max > 0 {
		size = min(size, cfg.Max)
	}
	return max(size, 1)
}

// NormalizeOrderBy returns the default for an empty value and rejects
// anything not in Allowed. Comparison ignores case and outer space.
func NormalizeOrderBy(orderBy string, cfg OrderByConfig) (string, error) {
	orderBy = strings.ToLower(strings.TrimSpace(orderBy))
	if orderBy == "" {
		return cfg.Default, nil
	}
	for _, allowed := range cfg.Allowed {
		if orderBy == allowed {
			return orderBy, nil
		}
	}
	return "", fmt.Errorf("invalid order_by %q (allowed: %s)", orderBy, strings.Join(cfg.Allowed, ", "))
}

const cursorPrefix = "seq:"

// EncodeSequenceCursor returns an opaque page token resuming after seq.
func EncodeSequenceCursor(seq uint64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.FormatUint(seq, 10)))
}

// DecodeSequenceCursor reverses EncodeSequenceCursor.
func DecodeSequenceCursor(token string) (uint64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return 0, fmt.Errorf("invalid page token %q", token)
	}
	value, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid page token %q", token)
	}
	seq, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid page token %q", token)
	}
	return seq, nil
}
