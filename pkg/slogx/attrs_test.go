package slogx

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAttrs(t *testing.T) {
	assert.Equal(t, "boom", Error(errors.New("boom")).Value.String())
	assert.Equal(t, "<nil>", Error(nil).Value.String())
	assert.Equal(t, KeyLoggerName, LoggerName("executor").Key)

	id := uuid.New()
	a := RunID(id)
	assert.Equal(t, KeyRunID, a.Key)
	assert.Equal(t, id.String(), a.Value.String())
	assert.Equal(t, int64(3), Attempt(3).Value.Int64())
	assert.Equal(t, id.String(), Stringer("id", id).Value.String())
}
