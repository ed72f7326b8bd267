package audit

import (
	"context"
	"testing"
	"time"
)

func TestService_AppendRequiresActorAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo(0))

	if err := svc.Append(context.Background(), Event{Type: EventTypeCallRouted}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{ActorUserID: "user_a"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_FillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo(0)
	svc := NewService(repo)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.clock = func() time.Time { return fixed }

	if err := svc.LogNumberAssigned(context.Background(), "user_a", "1234"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].ID == "" {
		t.Fatalf("expected id to be generated")
	}
	if !evs[0].CreatedAt.Equal(fixed) {
		t.Fatalf("expected created_at %v, got %v", fixed, evs[0].CreatedAt)
	}
	if evs[0].Type != EventTypeNumberAssigned || evs[0].PhoneNumber != "1234" {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
}

func TestMemoryRepo_DropsOldest(t *testing.T) {
	repo := NewMemoryRepo(2)
	for _, id := range []string{"a", "b", "c"} {
		_ = repo.Append(context.Background(), Event{ID: id})
	}

	evs := repo.Events()
	if len(evs) != 2 || evs[0].ID != "b" || evs[1].ID != "c" {
		t.Fatalf("unexpected events: %+v", evs)
	}
}
