package services

import (
	"context"
	"testing"

	"pocketledger/internal/models"
	"pocketledger/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)

	user := testutil.CreateTestUser(t, db)
	svc.Log(context.Background(), user.ID, AuditDeleteEntry, "entry", "e-1", "127.0.0.1", map[string]any{"amount": 42})

	var logs []models.AuditLog
	if err := db.Where("user_id = ?", user.ID).Find(&logs).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit log, got %d", len(logs))
	}
	if logs[0].Action != AuditDeleteEntry || logs[0].ResourceID != "e-1" || logs[0].Changes != `{"amount":42}` {
		t.Errorf("unexpected audit log: %+v", logs[0])
	}
}
