package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestWrapNotFound(t *testing.T) {
	assert.NoError(t, WrapNotFound(nil))
	assert.Equal(t, ErrNotFound, WrapNotFound(pgx.ErrNoRows))
	assert.Equal(t, ErrNotFound, WrapNotFound(fmt.Errorf("scan: %w", pgx.ErrNoRows)))

	err := WrapNotFound(errors.New("connection reset"))
	assert.EqualError(t, err, "db: connection reset")
	assert.False(t, IsNotFound(err))
	assert.True(t, IsNotFound(WrapNotFound(pgx.ErrNoRows)))
}
