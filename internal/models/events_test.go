package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoerceID(t *testing.T) {
	req := require.New(t)

	req.Equal("u1", CoerceID("u1"))
	// JSON numbers decode as float64
	req.Equal("12345", CoerceID(float64(12345)))
	req.Equal("7", CoerceID(7))
	req.Equal("", CoerceID(nil))
	req.Equal("", CoerceID([]string{"x"}))
}
