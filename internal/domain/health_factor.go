package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const infiniteLiteral = "infinite"

// HealthFactor is either a finite non-negative ratio or the infinite sentinel
// used for positions without outstanding debt. The sentinel is stored as NULL
// and rendered as "infinite" in JSON.
type HealthFactor struct {
	value    decimal.Decimal
	infinite bool
}

// InfiniteHealth is the health factor of a position that owes nothing.
func InfiniteHealth() HealthFactor {
	return HealthFactor{infinite: true}
}

func NewHealthFactor(v decimal.Decimal) HealthFactor {
	return HealthFactor{value: v}
}

func (h HealthFactor) IsInfinite() bool { return h.infinite }

// Decimal returns the finite value; it is zero for the infinite sentinel.
func (h HealthFactor) Decimal() decimal.Decimal {
	if h.infinite {
		return decimal.Zero
	}
	return h.value
}

// LessThan never holds for the infinite sentinel.
func (h HealthFactor) LessThan(d decimal.Decimal) bool {
	if h.infinite {
		return false
	}
	return h.value.LessThan(d)
}

func (h HealthFactor) Equal(o HealthFactor) bool {
	if h.infinite || o.infinite {
		return h.infinite == o.infinite
	}
	return h.value.Equal(o.value)
}

func (h HealthFactor) String() string {
	if h.infinite {
		return infiniteLiteral
	}
	return h.value.String()
}

func (h HealthFactor) MarshalJSON() ([]byte, error) {
	if h.infinite {
		return []byte(`"` + infiniteLiteral + `"`), nil
	}
	return []byte(h.value.String()), nil
}

func (h *HealthFactor) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`"`+infiniteLiteral+`"`)) {
		*h = InfiniteHealth()
		return nil
	}
	var v decimal.Decimal
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return fmt.Errorf("health factor: %w", err)
	}
	*h = NewHealthFactor(v)
	return nil
}

// Scan implements sql.Scanner; NULL is the infinite sentinel.
func (h *HealthFactor) Scan(value interface{}) error {
	if value == nil {
		*h = InfiniteHealth()
		return nil
	}
	var v decimal.Decimal
	if err := v.Scan(value); err != nil {
		return err
	}
	*h = NewHealthFactor(v)
	return nil
}

// Value implements driver.Valuer.
func (h HealthFactor) Value() (driver.Value, error) {
	if h.infinite {
		return nil, nil
	}
	return h.value.String(), nil
}
