package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestValidateAcceptsStandardGrammar(t *testing.T) {
	valid := []string{
		"*/5 * * * *",
		"0 9 * * 1-5",
		"15,45 8-18 * * *",
		"0 0 1 1 *",
		"30 */2 * * * *", // six fields, leading seconds
		"@hourly",
		"@every 90s",
	}

	for _, expr := range valid {
		if err := Validate(expr); err != nil {
			t.Fatalf("Validate(%q) returned error: %v", expr, err)
		}
	}
}

func TestValidateRejectsMalformedExpressions(t *testing.T) {
	invalid := []string{
		"",
		"   ",
		"not a cron",
		"61 * * * *",
		"* * * * * * *",
		"*/0 * * * *",
	}

	for _, expr := range invalid {
		err := Validate(expr)
		if err == nil {
			t.Fatalf("Validate(%q) accepted a malformed expression", expr)
		}
		if !errors.Is(err, ErrInvalidExpression) {
			t.Fatalf("Validate(%q) error %v does not wrap ErrInvalidExpression", expr, err)
		}
	}
}

func TestNextIsStrictlyAfter(t *testing.T) {
	after := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := Next("*/5 * * * *", after)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}

	want := time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("Next = %v, want %v", next, want)
	}
}

func TestNextIsMonotonic(t *testing.T) {
	expr := "*/15 * * * *"
	current := time.Date(2024, 6, 10, 8, 3, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		next, err := Next(expr, current)
		if err != nil {
			t.Fatalf("Next error at step %d: %v", i, err)
		}
		if !next.After(current) {
			t.Fatalf("step %d: next %v is not after %v", i, next, current)
		}

		again, err := Next(expr, current)
		if err != nil {
			t.Fatalf("Next error on repeat at step %d: %v", i, err)
		}
		if !again.Equal(next) {
			t.Fatalf("step %d: Next is not deterministic: %v vs %v", i, again, next)
		}

		current = next
	}
}

func TestNextRejectsInvalidExpression(t *testing.T) {
	if _, err := Next("bogus", time.Now()); !errors.Is(err, ErrInvalidExpression) {
		t.Fatalf("expected ErrInvalidExpression, got %v", err)
	}
}
