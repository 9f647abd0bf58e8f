package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"pocketledger/internal/clock"
	"pocketledger/internal/realtime"
	"pocketledger/internal/testutil"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db     *gorm.DB
	hub    *realtime.Hub
	clock  *clock.MockClock
	books  BookServicer
	ledger LedgerServicer
	ctx    context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	hub := realtime.NewHub()
	clk := clock.NewMock(testNow)
	return &testEnv{
		db:     db,
		hub:    hub,
		clock:  clk,
		books:  NewBookService(db, hub, clk),
		ledger: NewLedgerService(db, hub, clk),
		ctx:    context.Background(),
	}
}

func strPtr(s string) *string { return &s }

func receive[T any](t *testing.T, sub *realtime.Subscription[T]) realtime.Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return realtime.Snapshot[T]{}
}
