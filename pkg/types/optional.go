package types

import (
	"encoding/json"
	"fmt"
)

// Optional marks a value that may be absent. An absent value encodes to JSON
// null so that "no data" is never confused with a legitimate zero.
type Optional[T any] struct {
	value T
	ok    bool
}

func Some[T any](value T) Optional[T] {
	return Optional[T]{value: value, ok: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

func (o Optional[T]) Valid() bool {
	return o.ok
}

// OrElse returns the value if present and fallback otherwise.
func (o Optional[T]) OrElse(fallback T) T {
	if !o.ok {
		return fallback
	}
	return o.value
}

func (o Optional[T]) String() string {
	if !o.ok {
		return "n/a"
	}
	return fmt.Sprint(o.value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(input []byte) error {
	if string(input) == "null" {
		*o = None[T]()
		return nil
	}
	var value T
	if err := json.Unmarshal(input, &value); err != nil {
		return err
	}
	*o = Some(value)
	return nil
}

// Percent is a 0–100 value that may be absent.
type Percent = Optional[float64]
