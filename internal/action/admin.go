package action

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kidsmoney/internal/model"
)

func adminGrant(c *applyCtx, a Action) (model.Receipt, error) {
	if err := requireRole(c, model.RoleAdmin); err != nil {
		return model.Receipt{}, err
	}
	if err := positive("amount", a.Amount); err != nil {
		return model.Receipt{}, err
	}
	var n int64
	for i := range c.st.Users {
		u := &c.st.Users[i]
		if u.Role != model.RolePlayer {
			continue
		}
		u.Balance += a.Amount
		c.st.Treasury.Minted += a.Amount
		u.Record("grant", a.Amount, c.actor.ID, a.Body, c.st.Turn, c.now)
		n++
	}
	if n > 0 {
		c.st.AddNews("bank", fmt.Sprintf("Every player received %d coins", a.Amount), c.now)
	}

	r := c.receipt(KindAdminGrant)
	r.Amount = a.Amount
	r.Quantity = n
	return r, nil
}

var (
	maxRate       = decimal.NewFromInt(1)
	maxMultiplier = decimal.NewFromInt(5)
)

func checkRate(name string, v *decimal.Decimal, limit decimal.Decimal) error {
	if v == nil {
		return nil
	}
	if v.IsNegative() || v.GreaterThan(limit) {
		return model.Reject(model.KindValidation, "%s must be within 0..%s", name, limit)
	}
	return nil
}

// adminSettings validates the whole patch before touching the settings so a
// bad field leaves every other field unchanged.
func adminSettings(c *applyCtx, a Action) (model.Receipt, error) {
	if err := requireRole(c, model.RoleAdmin); err != nil {
		return model.Receipt{}, err
	}
	p := a.Settings
	if p == nil {
		return model.Receipt{}, model.Reject(model.KindValidation, "settings are required")
	}
	for _, chk := range []error{
		checkRate("taxRate", p.TaxRate, maxRate),
		checkRate("depositRate", p.DepositRate, maxRate),
		checkRate("loanRate", p.LoanRate, maxRate),
		checkRate("salaryMultiplier", p.SalaryMultiplier, maxMultiplier),
	} {
		if chk != nil {
			return model.Receipt{}, chk
		}
	}
	if p.LoanCap != nil && *p.LoanCap < 0 {
		return model.Receipt{}, model.Reject(model.KindValidation, "loanCap must be >= 0")
	}
	if p.TurnDurationMS != nil && time.Duration(*p.TurnDurationMS)*time.Millisecond < c.cfg.MinTurnDuration {
		return model.Receipt{}, model.Reject(model.KindValidation, "turn duration must be at least %s", c.cfg.MinTurnDuration)
	}

	s := &c.st.Settings
	if p.TaxRate != nil {
		s.TaxRate = *p.TaxRate
	}
	if p.DepositRate != nil {
		s.DepositRate = *p.DepositRate
	}
	if p.LoanRate != nil {
		s.LoanRate = *p.LoanRate
	}
	if p.SalaryMultiplier != nil {
		s.SalaryMultiplier = *p.SalaryMultiplier
	}
	if p.LoanCap != nil {
		s.LoanCap = *p.LoanCap
	}
	if p.TurnDurationMS != nil {
		s.TurnDurationMS = *p.TurnDurationMS
		c.st.TimeRemainingMS = min(c.st.TimeRemainingMS, s.TurnDurationMS)
	}

	return c.receipt(KindAdminSettings), nil
}

func adminTimer(c *applyCtx, a Action) (model.Receipt, error) {
	if err := requireRole(c, model.RoleAdmin); err != nil {
		return model.Receipt{}, err
	}
	if a.Running == nil {
		return model.Receipt{}, model.Reject(model.KindValidation, "running is required")
	}
	if c.st.IsTimerRunning == *a.Running {
		return model.Receipt{}, model.Reject(model.KindConflict, "timer already in that state")
	}
	c.st.IsTimerRunning = *a.Running
	return c.receipt(KindAdminTimer), nil
}

// adminReset removes every player and pending request. Staff accounts, the
// market and the revision counter survive. Cash held by removed players is
// booked as burned.
func adminReset(c *applyCtx, _ Action) (model.Receipt, error) {
	if err := requireRole(c, model.RoleAdmin); err != nil {
		return model.Receipt{}, err
	}
	actorID := c.actor.ID
	removed := map[string]bool{}
	users := make([]model.User, 0, len(c.st.Users))
	for _, u := range c.st.Users {
		if u.Role == model.RolePlayer {
			removed[u.ID] = true
			c.st.Treasury.Burned += u.Balance + u.Deposit
			continue
		}
		users = append(users, u)
	}
	c.st.Users = users
	c.st.Requests = []model.Request{}
	c.st.Calls = []model.Call{}
	c.st.Messages = []model.Message{}
	for i := range c.st.Lands {
		l := &c.st.Lands[i]
		if l.OwnerID != nil && removed[*l.OwnerID] {
			l.OwnerID = nil
			l.SoldAt = nil
			l.Status = model.LandPublished
		}
	}
	for i := range c.st.Proposals {
		p := &c.st.Proposals[i]
		if p.Status == model.ProposalActive {
			p.Status = model.ProposalRejected
			p.Applied = true
		}
	}
	keys := c.st.ProcessedIdempotencyKeys[:0]
	for _, k := range c.st.ProcessedIdempotencyKeys {
		if !removed[k.ActorID] {
			keys = append(keys, k)
		}
	}
	c.st.ProcessedIdempotencyKeys = keys
	c.st.AddNews("town", "The town was reset", c.now)

	c.actor = c.st.User(actorID)
	r := c.receipt(KindAdminReset)
	r.Quantity = int64(len(removed))
	return r, nil
}
