package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"sitecnd/internal/config"
	"sitecnd/internal/manager"
	"sitecnd/pkg/types"
)

type availableModel struct{}

func (availableModel) Availability(context.Context) (types.Availability, error) {
	return types.AvailabilityAvailable, nil
}

func (availableModel) CreateSession(context.Context, string) (manager.Session, error) {
	return nil, manager.ErrDependencyUnavailable("not used")
}

func newApp(t *testing.T, store string) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Store = store
	a, err := New(context.Background(), cfg, zerolog.Nop(), Options{Model: availableModel{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewRejectsUnknownStore(t *testing.T) {
	cfg := config.Default()
	cfg.Store = "redis://localhost"
	_, err := New(context.Background(), cfg, zerolog.Nop(), Options{})
	require.Error(t, err)
}

func TestHandleAndStatus(t *testing.T) {
	a := newApp(t, "memory:")
	require.False(t, a.Ready())

	rep, err := a.Handle(context.Background(), types.NewMessage(types.KindRequestModelStatus, nil))
	require.NoError(t, err)
	require.NotNil(t, rep.Message)
	require.True(t, a.Ready())

	id, avail := a.Subscribe(context.Background(), "panel")
	require.Equal(t, "panel", id)
	require.Equal(t, types.AvailabilityAvailable, avail)
	st := a.Status()
	require.Equal(t, 1, st.Subscribers)
	require.True(t, st.Polling)
	a.Unsubscribe(id)
	require.Equal(t, 0, a.Status().Subscribers)
}

func TestSiteCSSSurvivesRestart(t *testing.T) {
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "sitecnd.db")
	ctx := context.Background()

	cfg := config.Default()
	cfg.Store = dsn
	a, err := New(ctx, cfg, zerolog.Nop(), Options{Model: availableModel{}})
	require.NoError(t, err)
	_, err = a.Handle(ctx, types.NewMessage(types.KindSetSiteCSS, types.SiteCSSRequest{Domain: "example.com", CSS: "a{}"}))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b := newApp(t, dsn)
	rep, err := b.Handle(ctx, types.NewMessage(types.KindRequestSiteCSSStatus, types.SiteCSSRequest{Domain: "example.com"}))
	require.NoError(t, err)
	var st types.SiteCSSStatusPayload
	require.NoError(t, rep.Message.Decode(&st))
	require.True(t, st.HasCSS)
	require.True(t, st.Enabled)
}

func TestPollIsClamped(t *testing.T) {
	a := newApp(t, "memory:")
	a.maxPoll = 20 * time.Millisecond
	start := time.Now()
	cmds := a.PollAgent(context.Background(), 9, time.Hour)
	require.Empty(t, cmds)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, time.Duration(0), a.clampPoll(-time.Second))
}
