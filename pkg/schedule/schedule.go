// Package schedule parses and evaluates recurrence expressions. The grammar
// is the standard five-field cron layout (minute, hour, day-of-month, month,
// day-of-week) with an optional leading seconds field; descriptors such as
// @hourly and @every are also accepted.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrInvalidExpression = errors.New("invalid schedule expression")

// Parser is the single parser used for both validation and the live cron
// runtime, so an expression accepted here fires exactly as validated.
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Parse returns the trigger predicate for expr. Malformed input yields an
// error wrapping ErrInvalidExpression, never a panic.
func Parse(expr string) (cron.Schedule, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}
	spec, err := Parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return spec, nil
}

func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// Next returns the first fire time strictly after the given instant. For a
// fixed expression and instant the result is deterministic.
func Next(expr string, after time.Time) (time.Time, error) {
	spec, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return spec.Next(after), nil
}
