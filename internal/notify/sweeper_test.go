package notify

import (
	"context"
	"testing"
	"time"

	"github.com/amanazads/flashbites-sub000/internal/testutil"
	"github.com/amanazads/flashbites-sub000/models"
	"github.com/amanazads/flashbites-sub000/repository"
)

func TestSweepRemovesOnlyExpired(t *testing.T) {
	db := testutil.OpenInMemoryDB(t, "sweeper")
	repo := repository.NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := &models.Notification{
		RecipientID: 1,
		Type:        models.NotificationOrderUpdate,
		Title:       "old",
		Body:        "b",
		CreatedAt:   now.Add(-40 * 24 * time.Hour),
		ExpiresAt:   now.Add(-10 * 24 * time.Hour),
	}
	fresh := &models.Notification{RecipientID: 1, Type: models.NotificationOrderUpdate, Title: "new", Body: "b"}
	if err := repo.Create(ctx, expired); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, fresh); err != nil {
		t.Fatalf("create: %v", err)
	}

	s := NewSweeper(repo, time.Hour)
	s.sweep(ctx)

	list, err := repo.ListByRecipient(ctx, 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != fresh.ID {
		t.Errorf("after sweep = %+v, want only the fresh notification", list)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	db := testutil.OpenInMemoryDB(t, "sweeper_cancel")
	s := NewSweeper(repository.NewNotificationRepository(db), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}
