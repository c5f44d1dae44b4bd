package notify

import (
	"fmt"
	"time"

	"kidsmoney/internal/model"
)

type Kind string

const (
	KindBalanceChanged   Kind = "balance_changed"
	KindIncomingCall     Kind = "incoming_call"
	KindCallUpdated      Kind = "call_updated"
	KindUnreadMessages   Kind = "unread_messages"
	KindDisasterStarted  Kind = "disaster_started"
	KindDisasterCleared  Kind = "disaster_cleared"
	KindNews             Kind = "news"
	KindTurnChanged      Kind = "turn_changed"
	KindRegimeChanged    Kind = "regime_changed"
	KindRequestDecided   Kind = "request_decided"
	KindProposalResolved Kind = "proposal_resolved"
)

// Notification is one client-visible change. UserID is empty for
// broadcasts. ID is stable for a given change at a given revision, so
// deriving the same transition twice yields the same IDs.
type Notification struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	UserID   string    `json:"userId,omitempty"`
	EntityID string    `json:"entityId,omitempty"`
	Revision int64     `json:"revision"`
	Amount   int64     `json:"amount,omitempty"`
	Count    int       `json:"count,omitempty"`
	Status   string    `json:"status,omitempty"`
	Text     string    `json:"text,omitempty"`
	At       time.Time `json:"at"`
}

type differ struct {
	rev int64
	at  time.Time
	out []Notification
}

func (d *differ) add(n Notification) {
	scope := n.UserID
	if scope == "" {
		scope = "*"
	}
	n.Revision = d.rev
	n.At = d.at
	n.ID = fmt.Sprintf("%s:%s:%s:%d", n.Kind, scope, n.EntityID, d.rev)
	d.out = append(d.out, n)
}

// Diff derives the notifications for the transition before -> after. It
// is pure; nil before is treated as an empty state and equal revisions
// produce nothing.
func Diff(before, after *model.GameState) []Notification {
	if after == nil {
		return nil
	}
	if before == nil {
		before = &model.GameState{}
	}
	if before.EventRevision == after.EventRevision && before.EventRevision != 0 {
		return nil
	}
	d := &differ{rev: after.EventRevision, at: after.LastTick}

	diffUsers(d, before, after)
	diffCalls(d, before, after)
	diffWorld(d, before, after)
	diffRequests(d, before, after)
	diffProposals(d, before, after)
	diffNews(d, before, after)
	return d.out
}

func diffUsers(d *differ, before, after *model.GameState) {
	for _, u := range after.Users {
		prev := before.User(u.ID)
		if prev == nil || prev.Balance != u.Balance {
			d.add(Notification{Kind: KindBalanceChanged, UserID: u.ID, EntityID: u.ID, Amount: u.Balance})
		}
		unread := after.UnreadCount(u.ID)
		if unread != before.UnreadCount(u.ID) {
			d.add(Notification{Kind: KindUnreadMessages, UserID: u.ID, EntityID: u.ID, Count: unread})
		}
	}
}

func diffCalls(d *differ, before, after *model.GameState) {
	for _, c := range after.Calls {
		prev := before.Call(c.ID)
		if prev == nil {
			if c.Status == model.CallPending {
				d.add(Notification{Kind: KindIncomingCall, UserID: c.ReceiverID, EntityID: c.ID, Text: c.CallerID})
			}
			continue
		}
		if prev.Status == c.Status {
			continue
		}
		for _, uid := range []string{c.CallerID, c.ReceiverID} {
			d.add(Notification{Kind: KindCallUpdated, UserID: uid, EntityID: c.ID, Status: string(c.Status)})
		}
	}
}

func diffWorld(d *differ, before, after *model.GameState) {
	if after.Turn != before.Turn {
		d.add(Notification{Kind: KindTurnChanged, EntityID: fmt.Sprint(after.Turn), Count: after.Turn})
	}
	if after.Economy.Status != before.Economy.Status {
		d.add(Notification{Kind: KindRegimeChanged, EntityID: string(after.Economy.Status), Status: string(after.Economy.Status)})
	}

	was, now := before.Environment.Disaster, after.Environment.Disaster
	if was != nil && (now == nil || now.ID != was.ID) {
		d.add(Notification{Kind: KindDisasterCleared, EntityID: was.ID, Text: was.Kind})
	}
	if now != nil && (was == nil || was.ID != now.ID) {
		d.add(Notification{Kind: KindDisasterStarted, EntityID: now.ID, Text: now.Kind, Count: now.Severity})
	}
}

func diffRequests(d *differ, before, after *model.GameState) {
	for _, r := range after.Requests {
		prev := before.Request(r.ID)
		if prev == nil || prev.Status == r.Status || r.Status == model.RequestPending {
			continue
		}
		d.add(Notification{Kind: KindRequestDecided, UserID: r.UserID, EntityID: r.ID, Status: string(r.Status), Amount: r.Amount})
	}
}

func diffProposals(d *differ, before, after *model.GameState) {
	for _, p := range after.Proposals {
		prev := before.Proposal(p.ID)
		if prev == nil || prev.Status == p.Status || p.Status == model.ProposalActive {
			continue
		}
		d.add(Notification{Kind: KindProposalResolved, EntityID: p.ID, Status: string(p.Status), Text: p.Title})
	}
}

func diffNews(d *differ, before, after *model.GameState) {
	seen := make(map[string]bool, len(before.News))
	for _, n := range before.News {
		seen[n.ID] = true
	}
	for _, n := range after.News {
		if !seen[n.ID] {
			d.add(Notification{Kind: KindNews, EntityID: n.ID, Status: n.Category, Text: n.Headline})
		}
	}
}
