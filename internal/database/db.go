package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Queryable is the subset of sqlx operations shared by *sqlx.DB and
// *sqlx.Tx. Store methods accept this interface so that callers decide
// whether a given operation participates in a surrounding transaction.
type Queryable interface {
	Exec(query string, args ...any) (sql.Result, error)
	NamedExec(query string, arg any) (sql.Result, error)
	Get(dest any, query string, args ...any) error
	Select(dest any, query string, args ...any) error
	Rebind(query string) string
}

// JsonColumn wraps a value of any type so it can be stored in (and
// scanned back out of) a jsonb column.
type JsonColumn[T any] struct {
	val     T
	present bool
}

func NewJsonColumn[T any](val T) JsonColumn[T] {
	return JsonColumn[T]{val: val, present: true}
}

// Get returns the wrapped value, which is the zero value of T
// if the scanned column was NULL.
func (j *JsonColumn[T]) Get() T {
	return j.val
}

func (j *JsonColumn[T]) Scan(src any) error {
	if src == nil {
		j.present = false
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T in to JsonColumn", src)
	}

	if err := json.Unmarshal(raw, &j.val); err != nil {
		return fmt.Errorf("failed to unmarshal jsonb column: %w", err)
	}

	j.present = true
	return nil
}

func (j JsonColumn[T]) Value() (driver.Value, error) {
	if !j.present {
		return nil, nil
	}

	raw, err := json.Marshal(j.val)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value for jsonb column: %w", err)
	}

	return raw, nil
}
