package position

import (
	"fmt"

	"github.com/synthview/parity-engine/internal/model"
)

// Validate checks a position set that arrived already typed (the JSON API
// path), enforcing the same schema rules the CSV parser applies: known
// kind, non-negative quantity, strike present on option rows. Returns an
// error wrapping ErrMalformedInput on the first violation.
func Validate(positions []model.Position) error {
	for i, p := range positions {
		switch p.Kind {
		case model.KindFutures, model.KindCash, model.KindPut, model.KindCall:
		default:
			return fmt.Errorf("%w: position %d: unknown kind %q", ErrMalformedInput, i, p.Kind)
		}
		if p.Quantity.IsNegative() {
			return fmt.Errorf("%w: position %d: negative quantity %s", ErrMalformedInput, i, p.Quantity)
		}
		if (p.Kind == model.KindPut || p.Kind == model.KindCall) && !p.Strike.Valid {
			return fmt.Errorf("%w: position %d: %s without strike", ErrMalformedInput, i, p.Kind)
		}
	}
	return nil
}
