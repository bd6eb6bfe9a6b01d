package main

import (
	"errors"
	"testing"

	"github.com/samber/do/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/duel/internal/pkg/events"

	log "github.com/sirupsen/logrus"
)

func TestNewInjector(t *testing.T) {
	t.Parallel()

	i, eventSink := newInjector(serverConfig{
		Port:          0,
		DataDir:       t.TempDir(),
		EventBuffer:   4,
		ValkeyAddress: "",
		ValkeyChannel: "duel:events",
	})

	duelService, err := do.Invoke[DuelService](i)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = duelService.DatabaseService.Shutdown()
	})

	assert.Nil(t, duelService.EventService.Publisher)
	assert.Same(t, duelService.DatabaseService, duelService.WagerService.DatabaseService)
	assert.Same(t, duelService.DatabaseService, duelService.LedgerService.DatabaseService)
	assert.Same(t, eventSink, duelService.WagerService.EventSink)
	assert.Equal(t, 4, cap(eventSink.Source()))

	duelService.EventService.Start()

	require.True(t, eventSink.Send(events.New(events.GameCreated, "alice", "alice", nil)))
	eventSink.Close()

	duelService.EventService.Wait()

	assert.False(t, eventSink.Send(events.New(events.GamePlayed, "alice", "alice", nil)))
}

func TestConfigureLogging(t *testing.T) {
	t.Parallel()

	require.NoError(t, configureLogging("debug"))
	require.Error(t, configureLogging("loud"))
}

func TestShutdownLogsFailures(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	shutdown("database", func() error {
		return nil
	})
	assert.Empty(t, hook.AllEntries())

	shutdown("database", func() error {
		return errors.New("fsync failed")
	})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.WarnLevel, entry.Level)
	assert.Equal(t, "database", entry.Data["service"])
	assert.EqualError(t, entry.Data[log.ErrorKey].(error), "fsync failed")
}
