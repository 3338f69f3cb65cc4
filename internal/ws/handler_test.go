package ws

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringIDs(t *testing.T) {
	req := require.New(t)

	req.Equal([]string{"a", "b"}, stringIDs([]any{"a", "b"}))
	// Numeric ids get coerced, junk gets skipped
	req.Equal([]string{"42"}, stringIDs([]any{float64(42), map[string]any{}}))
	req.Nil(stringIDs("not-a-list"))
	req.Nil(stringIDs(nil))
}
