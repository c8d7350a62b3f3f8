package services

import (
	"fmt"
	"strings"

	"github.com/spacetask/spacetask/internal/common"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, fmt.Sprintf(format, args...))
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid("%s must not be empty", field)
	}
	return nil
}

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return invalid("latitude %v out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return invalid("longitude %v out of range", lng)
	}
	return nil
}

// clampLimit applies the default for a zero limit and caps it at max.
func clampLimit(limit, def, max int) (int, error) {
	switch {
	case limit < 0:
		return 0, invalid("limit must not be negative")
	case limit == 0:
		return def, nil
	case limit > max:
		return max, nil
	}
	return limit, nil
}
