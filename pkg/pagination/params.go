package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidParam is returned when a numeric query parameter is not an integer.
var ErrInvalidParam = errors.New("invalid query parameter")

// Bounds describes the accepted range and default of a numeric parameter.
type Bounds struct {
	Min     int
	Max     int // 0 means unbounded
	Default int
}

// Parameter bounds used by the measurement endpoints.
var (
	CountBounds = Bounds{Min: 1, Max: 100, Default: 5}
	TotalBounds = Bounds{Min: 1, Max: 1000, Default: 100}
	SizeBounds  = Bounds{Min: 1, Max: 100, Default: 10}
	PageBounds  = Bounds{Min: 1, Max: 0, Default: 1}
)

// Clamp forces v into the bounds.
func (b Bounds) Clamp(v int) int {
	if v < b.Min {
		return b.Min
	}
	if b.Max > 0 && v > b.Max {
		return b.Max
	}
	return v
}

// IntParam reads name from q. A missing or empty value yields the default,
// an out-of-range value is clamped, and a non-integer returns ErrInvalidParam.
func IntParam(q url.Values, name string, b Bounds) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return b.Default, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidParam, name, raw)
	}

	return b.Clamp(v), nil
}
