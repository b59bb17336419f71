package contracts

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// VariantSpec is one versioned screening rule
// ⭐ SSOT: 프로세스 시작 시 생성되고 이후 읽기 전용
type VariantSpec struct {
	Key             VariantKey    `json:"key"`
	Query           string        `json:"-"`
	Weight          float64       `json:"weight"`
	ExpectedResults ExpectedCount `json:"expected_results"`
	Description     string        `json:"description"`
}

// ExpectedCount is an int or the literal "variable"
type ExpectedCount struct {
	n        int
	variable bool
}

const variableLiteral = "variable"

// Count returns a fixed expected count
func Count(n int) ExpectedCount {
	return ExpectedCount{n: n}
}

// Variable returns an expected count that varies with market conditions
func Variable() ExpectedCount {
	return ExpectedCount{variable: true}
}

// Value returns the fixed count and whether it is fixed
func (e ExpectedCount) Value() (int, bool) {
	return e.n, !e.variable
}

// IsVariable reports whether the count is "variable"
func (e ExpectedCount) IsVariable() bool {
	return e.variable
}

func (e ExpectedCount) String() string {
	if e.variable {
		return variableLiteral
	}
	return strconv.Itoa(e.n)
}

// MarshalJSON encodes a number or "variable"
func (e ExpectedCount) MarshalJSON() ([]byte, error) {
	if e.variable {
		return json.Marshal(variableLiteral)
	}
	return json.Marshal(e.n)
}

// UnmarshalJSON accepts a number or "variable"
func (e *ExpectedCount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return e.parse(s)
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected_results must be int or %q: %w", variableLiteral, err)
	}
	*e = Count(n)
	return nil
}

// UnmarshalYAML accepts a number or "variable"
func (e *ExpectedCount) UnmarshalYAML(value *yaml.Node) error {
	return e.parse(value.Value)
}

func (e *ExpectedCount) parse(s string) error {
	if s == variableLiteral {
		*e = Variable()
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("expected_results must be int or %q, got %q", variableLiteral, s)
	}
	if n < 0 {
		return fmt.Errorf("expected_results must be >= 0, got %d", n)
	}
	*e = Count(n)
	return nil
}
