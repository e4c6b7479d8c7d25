package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/repository"
)

func auditDecision(viewerID, subjectID string) models.PolicyDecision {
	return models.PolicyDecision{
		ViewerID:    viewerID,
		ViewerRole:  models.RoleStudent,
		SubjectID:   subjectID,
		CampusID:    "main",
		Outcome:     models.OutcomeAllowBuilding,
		BuildingID:  strPtr("bldg-sci"),
		RequestedAt: time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC),
	}
}

func TestAuditRecordFlowsThroughWriter(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, nil, "", nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	svc.Record(auditDecision("student-1", "prof-a"))
	svc.Record(auditDecision("student-1", "prof-b"))
	svc.Record(auditDecision("student-2", "prof-a"))

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.entries) == 3
	}, time.Second, 10*time.Millisecond)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Equal(t, uint64(1), repo.entries[0].Seq)
	require.Equal(t, "student-1", repo.entries[0].ViewerID)
	require.Equal(t, "prof-a", repo.entries[0].SubjectID)
	require.Equal(t, models.OutcomeAllowBuilding, repo.entries[0].Outcome)
}

func TestAuditRecordNeverBlocksOnFullBuffer(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, nil, "", nil, testLogger())

	// No writer running: the channel fills, then Record must keep returning.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < auditBufferSize+10; i++ {
			svc.Record(auditDecision("student-1", "prof-a"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full audit buffer")
	}
}

func TestAuditQueryPagesNewestFirst(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, nil, "", nil, testLogger()).(*auditService)
	for _, subjectID := range []string{"prof-a", "prof-b", "prof-c", "prof-d", "prof-e"} {
		svc.write(auditDecision("student-1", subjectID))
	}

	first, err := svc.Query(context.Background(), repository.AuditFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Entries, 2)
	require.Equal(t, "prof-e", first.Entries[0].SubjectID)
	require.Equal(t, uint64(4), first.NextCursor)

	second, err := svc.Query(context.Background(), repository.AuditFilter{Limit: 2, BeforeSeq: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Entries, 2)
	require.Equal(t, "prof-c", second.Entries[0].SubjectID)
	require.Equal(t, uint64(2), second.NextCursor)

	last, err := svc.Query(context.Background(), repository.AuditFilter{Limit: 2, BeforeSeq: second.NextCursor})
	require.NoError(t, err)
	require.Len(t, last.Entries, 1)
	require.Zero(t, last.NextCursor)
}

func TestAuditQueryClampsLimit(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, nil, "", nil, testLogger()).(*auditService)
	for i := 0; i < 5; i++ {
		svc.write(auditDecision("student-1", "prof-a"))
	}

	page, err := svc.Query(context.Background(), repository.AuditFilter{Limit: -3})
	require.NoError(t, err)
	require.Len(t, page.Entries, 5)
	require.Zero(t, page.NextCursor)

	page, err = svc.Query(context.Background(), repository.AuditFilter{Limit: 500})
	require.NoError(t, err)
	require.Len(t, page.Entries, 5)
}

func TestAuditMirrorsToRedisStream(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, redisClient, "presence", nil, testLogger()).(*auditService)
	svc.write(auditDecision("student-1", "prof-a"))

	length, err := redisClient.XLen(context.Background(), "presence:audit").Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), length)
}
