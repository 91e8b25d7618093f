package client

import (
	"context"
	"testing"
	"time"

	"github.com/clmpro/clmsetup/internal/account"
	"github.com/clmpro/clmsetup/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchEvents(t *testing.T) {
	srv, ts := newTestServer(t)
	c := newTestClient(t, ts.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u, err := c.Register(ctx, golfer)
	require.NoError(t, err)

	events, err := c.WatchEvents(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Hub().Subscribers(u.ID) == 1 }, time.Second, 10*time.Millisecond)

	_, err = c.CreateDevice(ctx, account.NewDevice{Name: "Bay 1"})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, server.EventDeviceCreated, ev.Type)
		d, err := ev.Device()
		require.NoError(t, err)
		assert.Equal(t, "Bay 1", d.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel closes after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed")
	}
}

func TestWatchEvents_Unauthenticated(t *testing.T) {
	_, ts := newTestServer(t)
	c := newTestClient(t, ts.URL)

	_, err := c.WatchEvents(context.Background())
	require.Error(t, err)
	assert.True(t, account.IsAuthError(err))
}
