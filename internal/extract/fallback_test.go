package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryInOrderFirstAccepted(t *testing.T) {
	steps := []Step{
		{Name: "primary", Run: func(context.Context) (string, error) { return "long enough output", nil }},
		{Name: "secondary", Run: func(context.Context) (string, error) {
			t.Fatal("secondary should not run")
			return "", nil
		}},
	}
	text, method, err := TryInOrder(context.Background(), steps, func(s string) bool { return len(s) > 5 })
	assert.NoError(t, err)
	assert.Equal(t, "primary", method)
	assert.Equal(t, "long enough output", text)
}

func TestTryInOrderFallsBackOnShortOutput(t *testing.T) {
	steps := []Step{
		{Name: "primary", Run: func(context.Context) (string, error) { return "x", nil }},
		{Name: "secondary", Run: func(context.Context) (string, error) { return "secondary output", nil }},
	}
	text, method, err := TryInOrder(context.Background(), steps, func(s string) bool { return len(s) > 5 })
	assert.NoError(t, err)
	assert.Equal(t, "secondary", method)
	assert.Equal(t, "secondary output", text)
}

func TestTryInOrderFallsBackOnError(t *testing.T) {
	steps := []Step{
		{Name: "primary", Run: func(context.Context) (string, error) { return "", errors.New("boom") }},
		{Name: "secondary", Run: func(context.Context) (string, error) { return "recovered", nil }},
	}
	text, method, err := TryInOrder(context.Background(), steps, func(string) bool { return true })
	assert.NoError(t, err)
	assert.Equal(t, "secondary", method)
	assert.Equal(t, "recovered", text)
}

func TestTryInOrderLastFailureSurfaces(t *testing.T) {
	steps := []Step{
		{Name: "primary", Run: func(context.Context) (string, error) { return "", errors.New("first") }},
		{Name: "secondary", Run: func(context.Context) (string, error) { return "", errors.New("second") }},
	}
	_, _, err := TryInOrder(context.Background(), steps, func(string) bool { return true })
	assert.EqualError(t, err, "second")
}
