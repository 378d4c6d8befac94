package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"sitecnd/internal/clock"
	"sitecnd/pkg/types"
)

func TestBridgeLivenessFollowsPolls(t *testing.T) {
	clk := clock.NewFake()
	b := NewBridge(BridgeConfig{Clock: clk, LiveWindow: 5 * time.Second, Logger: zerolog.Nop()})
	ctx := context.Background()

	require.False(t, b.Probe(ctx, 1))
	require.ErrorIs(t, b.Send(ctx, 1, types.AgentCommand{Kind: types.CommandExtractSnapshot}), ErrNoAgent)

	require.Empty(t, b.Poll(ctx, 1, 0))
	require.True(t, b.Probe(ctx, 1))

	clk.Advance(6 * time.Second)
	require.False(t, b.Probe(ctx, 1))

	b.Poll(ctx, 1, 0)
	b.Drop(1)
	require.False(t, b.Probe(ctx, 1))
}

func TestBridgeQueueDropsOldest(t *testing.T) {
	b := NewBridge(BridgeConfig{Clock: clock.NewFake(), Logger: zerolog.Nop()})
	ctx := context.Background()
	b.Poll(ctx, 2, 0)

	for i := 0; i < DefaultMaxPending+2; i++ {
		require.NoError(t, b.Send(ctx, 2, types.AgentCommand{Kind: types.CommandChangeTheme, Theme: fmt.Sprint(i)}))
	}
	got := b.Poll(ctx, 2, 0)
	require.Len(t, got, DefaultMaxPending)
	require.Equal(t, "2", got[0].Theme)
	require.Equal(t, fmt.Sprint(DefaultMaxPending+1), got[len(got)-1].Theme)
	for _, c := range got {
		require.NotEmpty(t, c.ID)
	}
}

func TestBridgePollWakesOnSend(t *testing.T) {
	b := NewBridge(BridgeConfig{Logger: zerolog.Nop()})
	ctx := context.Background()
	b.Poll(ctx, 3, 0)

	got := make(chan []types.AgentCommand, 1)
	go func() { got <- b.Poll(ctx, 3, 2*time.Second) }()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Send(ctx, 3, types.AgentCommand{Kind: types.CommandExtractSnapshot, Domain: "a.com"}))

	select {
	case cmds := <-got:
		require.Len(t, cmds, 1)
		require.Equal(t, "a.com", cmds[0].Domain)
	case <-time.After(time.Second):
		t.Fatal("poll did not wake up")
	}
}

func TestBridgeInjectWaitsForAgent(t *testing.T) {
	b := NewBridge(BridgeConfig{Logger: zerolog.Nop()})
	ctx := context.Background()

	go func() {
		for {
			for _, c := range b.PollHost(ctx, time.Second) {
				if c.Kind == types.CommandInject {
					b.Poll(ctx, c.TabID, 0)
					return
				}
			}
		}
	}()
	require.NoError(t, b.Inject(ctx, 8))
	require.True(t, b.Probe(ctx, 8))
}

func TestBridgeInjectTimesOut(t *testing.T) {
	clk := clock.NewFake()
	clk.AutoAdvance = true
	b := NewBridge(BridgeConfig{Clock: clk, Logger: zerolog.Nop()})
	err := b.Inject(context.Background(), 8)
	require.ErrorIs(t, err, errNoArrival)

	host := b.PollHost(context.Background(), 0)
	require.Len(t, host, 1)
	require.Equal(t, types.CommandInject, host[0].Kind)
}

func TestBridgeHostCSSCommands(t *testing.T) {
	b := NewBridge(BridgeConfig{Logger: zerolog.Nop()})
	b.InsertCSS(1, "a.com", ":root{}")
	b.RemoveCSS(1, "a.com", ":root{}")
	got := b.PollHost(context.Background(), 0)
	require.Len(t, got, 2)
	require.Equal(t, types.CommandInsertCSS, got[0].Kind)
	require.Equal(t, types.CommandRemoveCSS, got[1].Kind)
}


func TestBridgeSendAfterDropFails(t *testing.T) {
	b := NewBridge(BridgeConfig{Clock: clock.NewFake(), Logger: zerolog.Nop()})
	ctx := context.Background()
	b.Poll(ctx, 4, 0)
	b.Drop(4)
	require.ErrorIs(t, b.Send(ctx, 4, types.AgentCommand{Kind: types.CommandExtractSnapshot}), ErrNoAgent)
}

func TestBridgeSendRacesDrop(t *testing.T) {
	b := NewBridge(BridgeConfig{Clock: clock.NewFake(), Logger: zerolog.Nop()})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			b.Poll(ctx, 5, 0)
			b.Drop(5)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			err := b.Send(ctx, 5, types.AgentCommand{Kind: types.CommandChangeTheme})
			if err != nil && err != ErrNoAgent {
				t.Errorf("send: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}
