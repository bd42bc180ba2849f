package operator

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

var decimalContext = apd.BaseContext.WithPrecision(34)

// Weight accumulates consensus weight fractions exactly so that a total does
// not depend on the order relays were added in.
type Weight struct {
	value apd.Decimal
}

// Add adds a fraction. Fractions that cannot be represented are a programming
// error upstream of the normalizer and are reported as such.
func (w *Weight) Add(fraction float64) error {
	var d apd.Decimal
	if _, err := d.SetFloat64(fraction); err != nil {
		return fmt.Errorf("invalid weight %v: %w", fraction, err)
	}
	_, err := decimalContext.Add(&w.value, &w.value, &d)
	return err
}

func (w *Weight) Float64() float64 {
	f, err := w.value.Float64()
	if err != nil {
		return 0
	}
	return f
}

func (w *Weight) String() string {
	return w.value.String()
}
