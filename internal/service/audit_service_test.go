package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/green-campus-api/internal/dto"
)

func TestAuditRecordMasksSensitiveMetadata(t *testing.T) {
	_, store := setupStore(t)
	audit := NewAuditService(store.Repos().Audit, testLogger())

	entry, err := audit.Record(context.Background(), AuditEntry{
		Actor:      Actor{ID: 4, Role: " Admin "},
		Action:     "Reward.Create",
		EntityType: "Reward",
		EntityID:   "12",
		Metadata:   map[string]interface{}{"contact_email": "ops@campus.test", "api_token": "secret", "cost": 5.0},
	})
	require.NoError(t, err)
	require.Equal(t, "admin", entry.ActorRole)
	require.Equal(t, "reward.create", entry.Action)
	require.Equal(t, "***", entry.Metadata["contact_email"])
	require.Equal(t, "***", entry.Metadata["api_token"])
	require.Equal(t, 5.0, entry.Metadata["cost"])

	_, err = audit.Record(context.Background(), AuditEntry{EntityType: "reward"})
	require.Error(t, err)
}

func TestAuditListFilters(t *testing.T) {
	_, store := setupStore(t)
	audit := NewAuditService(store.Repos().Audit, testLogger())
	ctx := context.Background()

	for _, entry := range []AuditEntry{
		{Actor: Actor{ID: 1, Role: "admin"}, Action: "ledger.adjust", EntityType: "wallet", EntityID: "1"},
		{Actor: Actor{ID: 1, Role: "admin"}, Action: "reward.create", EntityType: "reward", EntityID: "2"},
		{Actor: Actor{ID: 2, Role: "reviewer"}, Action: "activity.review", EntityType: "activity", EntityID: "abc"},
		{Action: "ledger.adjust", EntityType: "wallet", EntityID: "3"},
	} {
		_, err := audit.Record(ctx, entry)
		require.NoError(t, err)
	}

	byActor, err := audit.List(ctx, dto.AuditListRequest{Page: 1, PageSize: 10, ActorID: 1})
	require.NoError(t, err)
	require.Len(t, byActor.Items, 2)

	byAction, err := audit.List(ctx, dto.AuditListRequest{Page: 1, PageSize: 10, Action: "ledger.adjust"})
	require.NoError(t, err)
	require.Len(t, byAction.Items, 2)
	require.Equal(t, int64(2), byAction.Pagination.TotalItems)

	system, err := audit.List(ctx, dto.AuditListRequest{Page: 1, PageSize: 10, EntityType: "wallet", EntityID: "3"})
	require.NoError(t, err)
	require.Len(t, system.Items, 1)
	require.Equal(t, "system", system.Items[0].ActorRole)
}
