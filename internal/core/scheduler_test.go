package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceConfig_Defaults(t *testing.T) {
	cfg := MaintenanceConfig{}.withDefaults()
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, 30*24*time.Hour, cfg.ActivityRetention)

	cfg = MaintenanceConfig{Interval: time.Second}.withDefaults()
	assert.Equal(t, time.Second, cfg.Interval)
}

func TestRunMaintenance(t *testing.T) {
	log := NewMemoryActivityLog(10)
	svc, err := NewService(DefaultOptions(), log)
	require.NoError(t, err)

	clock := &fakeClock{t: time.Now()}
	svc.sessions.now = clock.now
	stale := svc.NewSession()
	clock.advance(2 * time.Hour)
	live := svc.NewSession()

	ctx := context.Background()
	require.NoError(t, log.Record(ctx, ActivityEntry{ID: "old", CreatedAt: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, log.Record(ctx, ActivityEntry{ID: "new", CreatedAt: time.Now()}))

	res := svc.runMaintenance(ctx, MaintenanceConfig{ActivityRetention: 24 * time.Hour}.withDefaults())
	assert.Equal(t, 1, res.SessionsExpired)
	assert.Equal(t, int64(1), res.ActivityPurged)

	_, err = svc.Session(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Session(live.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, log.Len())
}

func TestStartMaintenance_StopsOnCancel(t *testing.T) {
	svc, err := NewService(DefaultOptions(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartMaintenance(ctx, MaintenanceConfig{Interval: 10 * time.Millisecond})
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
