package dbtypes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDArrayScan(t *testing.T) {
	first := uuid.New()
	second := uuid.New()

	var arr UUIDArray
	require.NoError(t, arr.Scan([]byte(`{"`+first.String()+`", `+second.String()+`}`)))
	assert.Equal(t, UUIDArray{first, second}, arr)
	assert.True(t, arr.Contains(second))
	assert.False(t, arr.Contains(uuid.New()))

	require.NoError(t, arr.Scan(nil))
	assert.Empty(t, arr)

	require.NoError(t, arr.Scan("{}"))
	assert.Empty(t, arr)

	assert.Error(t, arr.Scan("{not-a-uuid}"))
	assert.Error(t, arr.Scan(42))
}

func TestUUIDArrayValue(t *testing.T) {
	id := uuid.New()

	v, err := UUIDArray{id}.Value()
	require.NoError(t, err)
	assert.Equal(t, "{"+id.String()+"}", v)

	v, err = UUIDArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}
