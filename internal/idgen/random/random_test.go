package random

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetID(t *testing.T) {
	g := New("pay_")

	id, err := g.GetID(context.Background())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(id, "pay_"))

	_, err = uuid.Parse(strings.TrimPrefix(id, "pay_"))
	assert.NoError(t, err)

	other, err := g.GetID(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}
