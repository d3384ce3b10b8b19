package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientURLs(t *testing.T) {
	t.Parallel()

	urls, err := clientURLs(18090)
	require.NoError(t, err)
	require.NotNil(t, urls)

	for _, u := range urls {
		assert.True(t, strings.HasPrefix(u, "ws://"), u)
		assert.True(t, strings.HasSuffix(u, ":18090/ws"), u)
		assert.NotContains(t, u, "127.0.0.1")
	}
}
