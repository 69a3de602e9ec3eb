package domain

import (
	"database/sql/driver"
	"fmt"
)

// status is implemented by every closed status type in this package.
type status interface {
	~string
	Valid() bool
}

func parseStatus[T status](kind, s string) (T, error) {
	v := T(s)
	if !v.Valid() {
		return v, fmt.Errorf("unknown %s %q", kind, s)
	}
	return v, nil
}

func scanStatus[T status](kind string, dst *T, src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scanning %s: unsupported type %T", kind, src)
	}
	parsed, err := parseStatus[T](kind, s)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

func statusValue[T status](kind string, v T) (driver.Value, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("refusing to store unknown %s %q", kind, string(v))
	}
	return string(v), nil
}
