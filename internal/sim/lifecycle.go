package sim

import (
	"fmt"
	"time"

	"kidsmoney/internal/model"
)

type npcTemplate struct {
	ID        string
	Name      string
	SpawnRate float64
	Duration  time.Duration
}

type eventTemplate struct {
	ID        string
	Title     string
	SpawnRate float64
	Duration  time.Duration
	Drift     float64
	Happiness int
}

var npcTemplates = []npcTemplate{
	{"ice_cream_truck", "Ice Cream Truck", 0.25, 3 * time.Minute},
	{"street_musician", "Street Musician", 0.20, 2 * time.Minute},
	{"traveling_merchant", "Traveling Merchant", 0.12, 5 * time.Minute},
	{"tax_inspector", "Tax Inspector", 0.08, 4 * time.Minute},
}

var eventTemplates = []eventTemplate{
	{"festival", "Town Festival", 0.08, 5 * time.Minute, 0, 5},
	{"market_rush", "Market Rush", 0.06, 3 * time.Minute, 0.01, 0},
	{"bank_run", "Bank Run", 0.03, 3 * time.Minute, -0.015, -3},
	{"charity_day", "Charity Day", 0.05, 4 * time.Minute, 0, 3},
}

const (
	inspectorSuspicion = 60
	inspectorFinePct   = 10
)

func (e *Engine) spawnEntities(st *model.GameState, now time.Time, out *Outcome) {
	for _, t := range npcTemplates {
		if len(st.ActiveNPCs) >= e.cfg.MaxActiveNPCs {
			break
		}
		if npcActive(st, t.ID) || e.rng.Float64() >= t.SpawnRate {
			continue
		}
		id := fmt.Sprintf("%s-%d", t.ID, st.Turn)
		st.ActiveNPCs = append(st.ActiveNPCs, model.ActiveNPC{
			ID:         id,
			TemplateID: t.ID,
			Name:       t.Name,
			StartedAt:  now,
			DurationMS: t.Duration.Milliseconds(),
		})
		out.Spawned = append(out.Spawned, id)
		st.AddNews("town", fmt.Sprintf("%s arrived in town", t.Name), now)
		if t.ID == "tax_inspector" {
			fineSuspects(st, now)
		}
	}

	for _, t := range eventTemplates {
		if len(st.ActiveEvents) >= e.cfg.MaxActiveEvents {
			break
		}
		if eventActive(st, t.ID) || e.rng.Float64() >= t.SpawnRate {
			continue
		}
		id := fmt.Sprintf("%s-%d", t.ID, st.Turn)
		st.ActiveEvents = append(st.ActiveEvents, model.ActiveEvent{
			ID:         id,
			TemplateID: t.ID,
			Title:      t.Title,
			Drift:      t.Drift,
			StartedAt:  now,
			DurationMS: t.Duration.Milliseconds(),
		})
		if t.Happiness != 0 {
			for i := range st.Users {
				st.Users[i].AdjustHappiness(t.Happiness)
			}
		}
		out.Spawned = append(out.Spawned, id)
		st.AddNews("event", fmt.Sprintf("%s has started", t.Title), now)
	}
}

func fineSuspects(st *model.GameState, now time.Time) {
	for i := range st.Users {
		u := &st.Users[i]
		if u.Role != model.RolePlayer || u.Suspicion < inspectorSuspicion || u.Balance <= 0 {
			continue
		}
		fine := u.Balance * inspectorFinePct / 100
		if fine == 0 {
			continue
		}
		u.Balance -= fine
		st.Treasury.Fees += fine
		u.Suspicion = model.ClampSuspicion(u.Suspicion - 30)
		u.Record("fine", -fine, "tax_inspector", "suspicious trading", st.Turn, now)
	}
}

func (e *Engine) expireEntities(st *model.GameState, now time.Time, out *Outcome) {
	npcs := st.ActiveNPCs[:0]
	for _, n := range st.ActiveNPCs {
		if n.Expired(now) {
			out.Expired = append(out.Expired, n.ID)
			continue
		}
		npcs = append(npcs, n)
	}
	st.ActiveNPCs = npcs

	events := st.ActiveEvents[:0]
	for _, ev := range st.ActiveEvents {
		if ev.Expired(now) {
			out.Expired = append(out.Expired, ev.ID)
			continue
		}
		events = append(events, ev)
	}
	st.ActiveEvents = events
}

// resolveProposals closes proposals whose deadline passed. A proposal passes
// on a strict majority of cast votes and its effect is applied exactly once.
func (e *Engine) resolveProposals(st *model.GameState, now time.Time, out *Outcome) {
	for i := range st.Proposals {
		p := &st.Proposals[i]
		if p.Status != model.ProposalActive || now.Before(p.Deadline) {
			continue
		}
		yes, no := 0, 0
		for _, v := range p.Votes {
			if v {
				yes++
			} else {
				no++
			}
		}
		if yes > no {
			p.Status = model.ProposalPassed
			applyProposal(st, p, now)
		} else {
			p.Status = model.ProposalRejected
		}
		out.Resolved = append(out.Resolved, p.ID)
		st.AddNews("governance", fmt.Sprintf("Proposal %q %s (%d yes, %d no)", p.Title, p.Status, yes, no), now)
	}
}

func applyProposal(st *model.GameState, p *model.Proposal, now time.Time) {
	if p.Applied {
		return
	}
	p.Applied = true
	switch p.Effect.Kind {
	case "tax_rate":
		st.Settings.TaxRate = p.Effect.TaxRate
	case "grant":
		for i := range st.Users {
			u := &st.Users[i]
			if u.Role != model.RolePlayer {
				continue
			}
			u.Balance += p.Effect.Amount
			st.Treasury.Minted += p.Effect.Amount
			u.Record("policy_grant", p.Effect.Amount, "town", p.Title, st.Turn, now)
		}
	}
}

func (e *Engine) missCalls(st *model.GameState, now time.Time, out *Outcome) {
	for i := range st.Calls {
		c := &st.Calls[i]
		if c.Status == model.CallPending && now.Sub(c.CreatedAt) >= e.cfg.CallRingTimeout {
			c.Status = model.CallMissed
			c.UpdatedAt = now
			out.CallsMissed++
		}
	}
}

func npcActive(st *model.GameState, templateID string) bool {
	for _, n := range st.ActiveNPCs {
		if n.TemplateID == templateID {
			return true
		}
	}
	return false
}

func eventActive(st *model.GameState, templateID string) bool {
	for _, ev := range st.ActiveEvents {
		if ev.TemplateID == templateID {
			return true
		}
	}
	return false
}
