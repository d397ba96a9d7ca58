package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgreely/oidcweb/oidc"
)

func TestLoginCache(t *testing.T) {
	t.Parallel()
	t.Run("take-is-one-shot", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := newLoginCache()
		req, err := oidc.NewRequest(1 * time.Minute)
		require.NoError(err)
		c.Add(req)

		got, err := c.Take(req.State())
		require.NoError(err)
		assert.Equal(req, got)

		_, err = c.Take(req.State())
		require.Error(err)
		assert.Truef(errors.Is(err, errNoPendingLogin), "wanted \"%s\" but got \"%s\"", errNoPendingLogin, err)
	})
	t.Run("unknown-state", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := newLoginCache()
		_, err := c.Take("st_unknown")
		require.Error(err)
		assert.Truef(errors.Is(err, errNoPendingLogin), "wanted \"%s\" but got \"%s\"", errNoPendingLogin, err)
	})
	t.Run("expired-request", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := newLoginCache()
		req, err := oidc.NewRequest(1 * time.Nanosecond)
		require.NoError(err)
		c.Add(req)

		_, err = c.Take(req.State())
		require.Error(err)
		assert.Truef(errors.Is(err, errNoPendingLogin), "wanted \"%s\" but got \"%s\"", errNoPendingLogin, err)
	})
}
