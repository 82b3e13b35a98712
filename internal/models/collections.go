package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

//
// Typed collections stored as JSON text columns.
//

// StringSet is an insertion-ordered set of strings.
type StringSet []string

// NewStringSet builds a set, dropping duplicates and empty values.
func NewStringSet(values ...string) StringSet {
	s := StringSet{}
	for _, v := range values {
		s = s.Add(v)
	}
	return s
}

// Contains reports whether v is in the set.
func (s StringSet) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// Add returns the set with v appended if absent.
func (s StringSet) Add(v string) StringSet {
	if v == "" || s.Contains(v) {
		return s
	}
	return append(s, v)
}

// Last returns the set trimmed to its newest n entries.
func (s StringSet) Last(n int) StringSet {
	if n <= 0 || len(s) <= n {
		return s
	}
	out := make(StringSet, n)
	copy(out, s[len(s)-n:])
	return out
}

func (s StringSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringSet) Scan(value any) error {
	b, err := scanText(value)
	if err != nil {
		return fmt.Errorf("StringSet: %w", err)
	}
	if len(b) == 0 {
		*s = StringSet{}
		return nil
	}
	var items []string
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("StringSet: %w", err)
	}
	*s = NewStringSet(items...)
	return nil
}

// IntList is an ordered list of ints, e.g. access hours.
type IntList []int

// Last returns the list trimmed to its newest n entries.
func (l IntList) Last(n int) IntList {
	if n <= 0 || len(l) <= n {
		return l
	}
	out := make(IntList, n)
	copy(out, l[len(l)-n:])
	return out
}

// Mean returns the arithmetic mean, or 0 for an empty list.
func (l IntList) Mean() float64 {
	if len(l) == 0 {
		return 0
	}
	sum := 0
	for _, v := range l {
		sum += v
	}
	return float64(sum) / float64(len(l))
}

func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IntList) Scan(value any) error {
	b, err := scanText(value)
	if err != nil {
		return fmt.Errorf("IntList: %w", err)
	}
	if len(b) == 0 {
		*l = IntList{}
		return nil
	}
	var items []int
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("IntList: %w", err)
	}
	*l = items
	return nil
}

func scanText(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("expected []byte or string, got %T", value)
	}
}
