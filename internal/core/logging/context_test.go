package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithSource(t *testing.T) {
	ctx := WithSource(context.Background(), "poll")
	assert.Equal(t, "poll", GetSource(ctx))
}

func TestWithCycleID(t *testing.T) {
	ctx := WithCycleID(context.Background(), "cycle-42")
	assert.Equal(t, "cycle-42", GetCycleID(ctx))
}

func TestContextValues_NotPresent(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetSource(ctx))
	assert.Empty(t, GetCycleID(ctx))
}

func TestContextValues_Both(t *testing.T) {
	ctx := WithSource(context.Background(), "push")
	ctx = WithCycleID(ctx, "c-1")

	assert.Equal(t, "push", GetSource(ctx))
	assert.Equal(t, "c-1", GetCycleID(ctx))
}
