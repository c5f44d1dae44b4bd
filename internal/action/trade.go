package action

import (
	"fmt"

	"kidsmoney/internal/model"
)

func signup(c *applyCtx, a Action) (model.Receipt, error) {
	if c.st.User(a.ActorID) != nil {
		return model.Receipt{}, model.Reject(model.KindConflict, "user %q already exists", a.ActorID)
	}
	role := model.Role(a.Role)
	if role == "" {
		role = model.RolePlayer
	}
	if !role.Valid() {
		return model.Receipt{}, model.Reject(model.KindValidation, "invalid role %q", a.Role)
	}
	if err := validateUserID(a.ActorID); err != nil {
		return model.Receipt{}, err
	}
	name := displayName(a.Name, a.ActorID)
	if err := validateName(name, role); err != nil {
		return model.Receipt{}, err
	}

	u := model.NewUser(a.ActorID, name, role, c.now)
	u.Balance = c.cfg.StarterBalance
	if role != model.RolePlayer {
		u.Balance = 0
	}
	c.st.Users = append(c.st.Users, u)
	c.actor = &c.st.Users[len(c.st.Users)-1]
	if c.actor.Balance > 0 {
		c.st.Treasury.Minted += c.actor.Balance
		c.record("starter", c.actor.Balance, "bank", "welcome to town")
	}
	c.st.AddNews("town", fmt.Sprintf("%s moved into town", name), c.now)

	r := c.receipt(KindSignup)
	r.EntityID = c.actor.ID
	r.Amount = c.actor.Balance
	return r, nil
}

func holdings(u *model.User, forbidden bool) map[string]int64 {
	if forbidden {
		if u.ForbiddenStocks == nil {
			u.ForbiddenStocks = map[string]int64{}
		}
		return u.ForbiddenStocks
	}
	if u.Stocks == nil {
		u.Stocks = map[string]int64{}
	}
	return u.Stocks
}

// tradable resolves the stock for a trade. A forbidden stock is only
// reachable from an unlocked account and only when the action targets the
// forbidden market.
func tradable(c *applyCtx, a Action) (*model.Stock, error) {
	if err := positive("quantity", a.Quantity); err != nil {
		return nil, err
	}
	s := c.st.Stock(a.StockID)
	if s == nil || s.Forbidden != a.Forbidden {
		return nil, model.Reject(model.KindNotFound, "unknown stock %q", a.StockID)
	}
	if s.Forbidden && !c.actor.ForbiddenUnlocked {
		return nil, model.Reject(model.KindForbidden, "forbidden market is locked")
	}
	return s, nil
}

func buyStock(c *applyCtx, a Action) (model.Receipt, error) {
	s, err := tradable(c, a)
	if err != nil {
		return model.Receipt{}, err
	}
	cost, err := model.Notional(s.Price, a.Quantity)
	if err != nil {
		return model.Receipt{}, model.Reject(model.KindValidation, "quantity too large")
	}
	if c.actor.Balance < cost {
		return model.Receipt{}, model.Reject(model.KindInsufficientFunds, "need %d coins, have %d", cost, c.actor.Balance)
	}

	c.actor.Balance -= cost
	holdings(c.actor, s.Forbidden)[s.ID] += a.Quantity
	c.st.Treasury.Market += cost
	c.record("buy_stock", -cost, s.ID, fmt.Sprintf("%d @ %d", a.Quantity, s.Price))
	if s.Forbidden {
		c.actor.Suspicion = model.ClampSuspicion(c.actor.Suspicion + c.cfg.SuspicionPerTrade)
	}

	r := c.receipt(KindBuyStock)
	r.EntityID = s.ID
	r.Amount = cost
	r.Quantity = a.Quantity
	return r, nil
}

func sellStock(c *applyCtx, a Action) (model.Receipt, error) {
	s, err := tradable(c, a)
	if err != nil {
		return model.Receipt{}, err
	}
	held := holdings(c.actor, s.Forbidden)
	if held[s.ID] < a.Quantity {
		return model.Receipt{}, model.Reject(model.KindInsufficientHold, "hold %d %s, want to sell %d", held[s.ID], s.ID, a.Quantity)
	}
	proceeds, err := model.Notional(s.Price, a.Quantity)
	if err != nil {
		return model.Receipt{}, model.Reject(model.KindValidation, "quantity too large")
	}

	held[s.ID] -= a.Quantity
	if held[s.ID] == 0 {
		delete(held, s.ID)
	}
	c.actor.Balance += proceeds
	c.st.Treasury.Market -= proceeds
	c.record("sell_stock", proceeds, s.ID, fmt.Sprintf("%d @ %d", a.Quantity, s.Price))
	if s.Forbidden {
		c.actor.Suspicion = model.ClampSuspicion(c.actor.Suspicion + c.cfg.SuspicionPerTrade)
	}

	r := c.receipt(KindSellStock)
	r.EntityID = s.ID
	r.Amount = proceeds
	r.Quantity = a.Quantity
	return r, nil
}

func unlockForbidden(c *applyCtx, _ Action) (model.Receipt, error) {
	if c.actor.ForbiddenUnlocked {
		return model.Receipt{}, model.Reject(model.KindConflict, "forbidden market already unlocked")
	}
	fee := c.cfg.UnlockFee
	if c.actor.Balance < fee {
		return model.Receipt{}, model.Reject(model.KindInsufficientFunds, "unlock costs %d coins", fee)
	}
	c.actor.Balance -= fee
	c.actor.ForbiddenUnlocked = true
	c.st.Treasury.Sales += fee
	c.record("unlock_forbidden", -fee, "system", "")

	r := c.receipt(KindUnlockForbidden)
	r.Amount = fee
	return r, nil
}
