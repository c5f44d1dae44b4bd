package notify

import (
	"testing"
	"time"

	"kidsmoney/internal/model"
)

var at = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

func baseState() *model.GameState {
	st := model.NewGameState(at, 1, 0)
	st.Users = append(st.Users,
		model.NewUser("kid_one", "One", model.RolePlayer, at),
		model.NewUser("kid_two", "Two", model.RolePlayer, at),
	)
	st.EventRevision = 4
	return st
}

func kinds(ns []Notification) map[Kind]int {
	out := map[Kind]int{}
	for _, n := range ns {
		out[n.Kind]++
	}
	return out
}

func TestDiffEqualRevisionIsEmpty(t *testing.T) {
	st := baseState()
	if got := Diff(st, st); len(got) != 0 {
		t.Fatalf("expected nothing, got %d", len(got))
	}
	if got := Diff(st, nil); got != nil {
		t.Fatalf("nil after should produce nothing")
	}
}

func TestDiffUserChanges(t *testing.T) {
	before := baseState()
	after, _ := model.Clone(before)
	after.EventRevision = 5
	after.Users[0].Balance -= 100
	after.Messages = append(after.Messages, model.Message{ID: "m1", From: "kid_one", To: "kid_two", Body: "hi"})
	after.Calls = append(after.Calls, model.Call{ID: "c1", CallerID: "kid_one", ReceiverID: "kid_two", Status: model.CallPending})

	ns := Diff(before, after)
	got := kinds(ns)
	if got[KindBalanceChanged] != 1 || got[KindUnreadMessages] != 1 || got[KindIncomingCall] != 1 {
		t.Fatalf("kinds = %v", got)
	}
	for _, n := range ns {
		if n.Revision != 5 {
			t.Fatalf("revision = %d", n.Revision)
		}
		switch n.Kind {
		case KindBalanceChanged:
			if n.UserID != "kid_one" || n.Amount != 900 {
				t.Fatalf("balance notification = %+v", n)
			}
		case KindUnreadMessages:
			if n.UserID != "kid_two" || n.Count != 1 {
				t.Fatalf("unread notification = %+v", n)
			}
		case KindIncomingCall:
			if n.UserID != "kid_two" || n.Text != "kid_one" {
				t.Fatalf("call notification = %+v", n)
			}
		}
	}
}

func TestDiffCallUpdateNotifiesBothSides(t *testing.T) {
	before := baseState()
	before.Calls = []model.Call{{ID: "c1", CallerID: "kid_one", ReceiverID: "kid_two", Status: model.CallPending}}
	after, _ := model.Clone(before)
	after.EventRevision = 5
	after.Calls[0].Status = model.CallMissed

	ns := Diff(before, after)
	if len(ns) != 2 {
		t.Fatalf("notifications = %+v", ns)
	}
	if ns[0].UserID != "kid_one" || ns[1].UserID != "kid_two" || ns[0].Status != "MISSED" {
		t.Fatalf("call updates = %+v", ns)
	}
}

func TestDiffWorldChanges(t *testing.T) {
	before := baseState()
	before.Environment.Disaster = &model.Disaster{ID: "d1", Kind: "flood", Severity: 2}
	after, _ := model.Clone(before)
	after.EventRevision = 5
	after.Turn = 2
	after.Economy.Status = model.RegimeBoom
	after.Environment.Disaster = &model.Disaster{ID: "d2", Kind: "storm", Severity: 3}
	after.AddNews("economy", "Boom!", at)

	got := kinds(Diff(before, after))
	want := map[Kind]int{
		KindTurnChanged:     1,
		KindRegimeChanged:   1,
		KindDisasterCleared: 1,
		KindDisasterStarted: 1,
		KindNews:            1,
	}
	for k, n := range want {
		if got[k] != n {
			t.Fatalf("%s = %d want %d (all %v)", k, got[k], n, got)
		}
	}
}

func TestDiffResolutions(t *testing.T) {
	before := baseState()
	before.Requests = []model.Request{{ID: "r1", UserID: "kid_one", Amount: 50, Status: model.RequestPending}}
	before.Proposals = []model.Proposal{{ID: "p1", Title: "Parks", Status: model.ProposalActive}}
	after, _ := model.Clone(before)
	after.EventRevision = 5
	after.Requests[0].Status = model.RequestApproved
	after.Proposals[0].Status = model.ProposalPassed

	ns := Diff(before, after)
	got := kinds(ns)
	if got[KindRequestDecided] != 1 || got[KindProposalResolved] != 1 {
		t.Fatalf("kinds = %v", got)
	}
}

func TestDiffIsDeterministic(t *testing.T) {
	before := baseState()
	after, _ := model.Clone(before)
	after.EventRevision = 5
	after.Users[1].Balance += 7
	after.Turn = 3

	a, b := Diff(before, after), Diff(before, after)
	if len(a) != len(b) {
		t.Fatalf("lengths differ")
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("ids differ: %s vs %s", a[i].ID, b[i].ID)
		}
	}
	if a[0].ID != "balance_changed:kid_two:kid_two:5" {
		t.Fatalf("id = %s", a[0].ID)
	}
}

func TestHubRoutingAndDedupe(t *testing.T) {
	h := NewHub(nil)
	one := h.Subscribe("kid_one", false, 8)
	two := h.Subscribe("kid_two", false, 8)
	staff := h.Subscribe("admin_1", true, 8)
	defer staff.Close()

	ns := []Notification{
		{ID: "a", Kind: KindBalanceChanged, UserID: "kid_one"},
		{ID: "b", Kind: KindTurnChanged},
	}
	if fresh := h.Publish(ns); fresh != 2 {
		t.Fatalf("fresh = %d", fresh)
	}
	if fresh := h.Publish(ns); fresh != 0 {
		t.Fatalf("duplicates republished: %d", fresh)
	}

	if len(one.C) != 2 || len(two.C) != 1 || len(staff.C) != 2 {
		t.Fatalf("deliveries one=%d two=%d staff=%d", len(one.C), len(two.C), len(staff.C))
	}
	if n := <-two.C; n.ID != "b" {
		t.Fatalf("kid_two got %s", n.ID)
	}

	one.Close()
	one.Close()
	if _, ok := <-drain(one.C); ok {
		t.Fatalf("closed subscription still open")
	}
	if h.Subscribers() != 2 {
		t.Fatalf("subscribers = %d", h.Subscribers())
	}
	two.Close()
}

// drain empties c and returns it once closed.
func drain(c <-chan Notification) <-chan Notification {
	for range c {
	}
	return c
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub(nil)
	s := h.Subscribe("kid_one", false, 1)
	defer s.Close()
	h.Publish([]Notification{{ID: "1"}, {ID: "2"}, {ID: "3"}})
	if len(s.C) != 1 {
		t.Fatalf("buffered = %d want 1", len(s.C))
	}
}

func TestHubForgetsOldIDs(t *testing.T) {
	h := NewHub(nil)
	h.limit = 2
	h.Publish([]Notification{{ID: "1"}, {ID: "2"}, {ID: "3"}})
	if fresh := h.Publish([]Notification{{ID: "1"}}); fresh != 1 {
		t.Fatalf("evicted id should be fresh again, got %d", fresh)
	}
	if fresh := h.Publish([]Notification{{ID: "3"}}); fresh != 0 {
		t.Fatalf("recent id republished")
	}
}
