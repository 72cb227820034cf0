package notify

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/amanazads/flashbites-sub000/internal/testutil"
	"github.com/amanazads/flashbites-sub000/models"
	"github.com/amanazads/flashbites-sub000/repository"
)

// fakeTransport returns a scripted status (or error) per endpoint.
type fakeTransport struct {
	mu       sync.Mutex
	statuses map[string]int
	errs     map[string]error
	sent     []string
}

func (f *fakeTransport) Send(_ context.Context, _ []byte, sub *models.PushSubscription) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sub.Endpoint)
	if err := f.errs[sub.Endpoint]; err != nil {
		return 0, err
	}
	if status, ok := f.statuses[sub.Endpoint]; ok {
		return status, nil
	}
	return http.StatusCreated, nil
}

func seedSubscription(t *testing.T, repo *repository.SubscriptionRepository, userID int64, endpoint string) *models.PushSubscription {
	t.Helper()
	s := &models.PushSubscription{UserID: userID, Endpoint: endpoint, P256dh: "k", Auth: "a"}
	if err := repo.Save(context.Background(), s); err != nil {
		t.Fatalf("save subscription: %v", err)
	}
	return s
}

func TestDeliverAttemptsEveryEndpoint(t *testing.T) {
	db := testutil.OpenInMemoryDB(t, "push_all")
	subs := repository.NewSubscriptionRepository(db)
	seedSubscription(t, subs, 1, "ep-ok")
	seedSubscription(t, subs, 1, "ep-error")
	seedSubscription(t, subs, 1, "ep-also-ok")

	tr := &fakeTransport{errs: map[string]error{"ep-error": errors.New("connection refused")}}
	p := &PushService{subs: subs, transport: tr}
	p.Deliver(context.Background(), 1, []byte(`{}`))

	if len(tr.sent) != 3 {
		t.Fatalf("attempted %d endpoints, want 3: %v", len(tr.sent), tr.sent)
	}
	// A transport error must not deactivate the subscription.
	active, _ := subs.ListActiveByUser(context.Background(), 1)
	if len(active) != 3 {
		t.Errorf("active = %d after transient failure, want 3", len(active))
	}
}

func TestDeliverDeactivatesGoneEndpoints(t *testing.T) {
	db := testutil.OpenInMemoryDB(t, "push_gone")
	subs := repository.NewSubscriptionRepository(db)
	seedSubscription(t, subs, 1, "ep-live")
	seedSubscription(t, subs, 1, "ep-gone")
	seedSubscription(t, subs, 1, "ep-missing")

	tr := &fakeTransport{statuses: map[string]int{
		"ep-gone":    http.StatusGone,
		"ep-missing": http.StatusNotFound,
	}}
	p := &PushService{subs: subs, transport: tr}
	p.Deliver(context.Background(), 1, []byte(`{}`))

	active, err := subs.ListActiveByUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].Endpoint != "ep-live" {
		t.Fatalf("active = %+v, want only ep-live", active)
	}

	// Delivering again only touches the surviving endpoint; dead ones stay
	// dead without erroring.
	tr.sent = nil
	p.Deliver(context.Background(), 1, []byte(`{}`))
	if len(tr.sent) != 1 || tr.sent[0] != "ep-live" {
		t.Errorf("second delivery hit %v, want only ep-live", tr.sent)
	}
}

func TestDeliverWithNoSubscriptionsIsNoOp(t *testing.T) {
	db := testutil.OpenInMemoryDB(t, "push_none")
	subs := repository.NewSubscriptionRepository(db)
	tr := &fakeTransport{}
	p := &PushService{subs: subs, transport: tr}

	p.Deliver(context.Background(), 42, []byte(`{}`))
	if len(tr.sent) != 0 {
		t.Errorf("sent to %v with no registrations", tr.sent)
	}
}

func TestDeliverScopesToRecipient(t *testing.T) {
	db := testutil.OpenInMemoryDB(t, "push_scope")
	subs := repository.NewSubscriptionRepository(db)
	seedSubscription(t, subs, 1, "ep-user1")
	seedSubscription(t, subs, 2, "ep-user2")

	tr := &fakeTransport{}
	p := &PushService{subs: subs, transport: tr}
	p.Deliver(context.Background(), 1, []byte(`{}`))

	if len(tr.sent) != 1 || tr.sent[0] != "ep-user1" {
		t.Errorf("sent to %v, want only user 1's endpoint", tr.sent)
	}
}
