package action

import (
	"fmt"

	"github.com/google/uuid"

	"kidsmoney/internal/model"
)

func withinLoanCap(st *model.GameState, u *model.User, amount int64) error {
	if limit := st.Settings.LoanCap; limit > 0 && u.Debt+amount > limit {
		return model.Reject(model.KindValidation, "loan would exceed the cap of %d coins (debt %d)", limit, u.Debt)
	}
	return nil
}

func lend(st *model.GameState, u *model.User, amount int64, lender string, c *applyCtx) {
	u.Balance += amount
	u.Debt += amount
	st.Treasury.Minted += amount
	u.Record("loan", amount, lender, fmt.Sprintf("debt now %d", u.Debt), st.Turn, c.now)
}

func takeLoan(c *applyCtx, a Action) (model.Receipt, error) {
	if err := positive("amount", a.Amount); err != nil {
		return model.Receipt{}, err
	}
	if err := withinLoanCap(c.st, c.actor, a.Amount); err != nil {
		return model.Receipt{}, err
	}
	lend(c.st, c.actor, a.Amount, "bank", c)

	r := c.receipt(KindTakeLoan)
	r.Amount = a.Amount
	return r, nil
}

// repayLoan pays down min(amount, debt). The requested amount, not the
// capped one, must be covered by the balance.
func repayLoan(c *applyCtx, a Action) (model.Receipt, error) {
	if err := positive("amount", a.Amount); err != nil {
		return model.Receipt{}, err
	}
	if c.actor.Debt == 0 {
		return model.Receipt{}, model.Reject(model.KindConflict, "no outstanding debt")
	}
	if a.Amount > c.actor.Balance {
		return model.Receipt{}, model.Reject(model.KindInsufficientFunds, "need %d coins, have %d", a.Amount, c.actor.Balance)
	}
	paid := min(a.Amount, c.actor.Debt)
	c.actor.Balance -= paid
	c.actor.Debt -= paid
	c.st.Treasury.Burned += paid
	c.record("repay", -paid, "bank", fmt.Sprintf("debt now %d", c.actor.Debt))

	r := c.receipt(KindRepayLoan)
	r.Amount = paid
	return r, nil
}

func requestLoan(c *applyCtx, a Action) (model.Receipt, error) {
	if err := positive("amount", a.Amount); err != nil {
		return model.Receipt{}, err
	}
	for _, req := range c.st.Requests {
		if req.UserID == c.actor.ID && req.Status == model.RequestPending {
			return model.Receipt{}, model.Reject(model.KindConflict, "request %s is still pending", req.ID)
		}
	}
	if err := withinLoanCap(c.st, c.actor, a.Amount); err != nil {
		return model.Receipt{}, err
	}
	req := model.Request{
		ID:        uuid.NewString(),
		Kind:      "loan",
		UserID:    c.actor.ID,
		Amount:    a.Amount,
		Status:    model.RequestPending,
		CreatedAt: c.now,
	}
	c.st.Requests = append(c.st.Requests, req)

	r := c.receipt(KindRequestLoan)
	r.EntityID = req.ID
	r.Amount = a.Amount
	return r, nil
}

func decideRequest(c *applyCtx, a Action) (model.Receipt, error) {
	if err := requireRole(c, model.RoleBanker, model.RoleAdmin); err != nil {
		return model.Receipt{}, err
	}
	if a.Approve == nil {
		return model.Receipt{}, model.Reject(model.KindValidation, "approve is required")
	}
	req := c.st.Request(a.RequestID)
	if req == nil {
		return model.Receipt{}, model.Reject(model.KindNotFound, "unknown request %q", a.RequestID)
	}
	if req.Status != model.RequestPending {
		return model.Receipt{}, model.Reject(model.KindConflict, "request %s already %s", req.ID, req.Status)
	}

	req.Status = model.RequestRejected
	if *a.Approve {
		borrower := c.st.User(req.UserID)
		if borrower == nil {
			return model.Receipt{}, model.Reject(model.KindConflict, "borrower %q no longer exists", req.UserID)
		}
		if err := withinLoanCap(c.st, borrower, req.Amount); err != nil {
			return model.Receipt{}, err
		}
		lend(c.st, borrower, req.Amount, c.actor.ID, c)
		req.Status = model.RequestApproved
	}
	decided := c.now
	req.DecidedBy = c.actor.ID
	req.DecidedAt = &decided

	r := c.receipt(KindDecideRequest)
	r.EntityID = req.ID
	r.Amount = req.Amount
	return r, nil
}

func deposit(c *applyCtx, a Action) (model.Receipt, error) {
	if err := positive("amount", a.Amount); err != nil {
		return model.Receipt{}, err
	}
	if c.actor.Balance < a.Amount {
		return model.Receipt{}, model.Reject(model.KindInsufficientFunds, "need %d coins, have %d", a.Amount, c.actor.Balance)
	}
	c.actor.Balance -= a.Amount
	c.actor.Deposit += a.Amount
	c.record("deposit", -a.Amount, "bank", "")

	r := c.receipt(KindDeposit)
	r.Amount = a.Amount
	return r, nil
}

func withdraw(c *applyCtx, a Action) (model.Receipt, error) {
	if err := positive("amount", a.Amount); err != nil {
		return model.Receipt{}, err
	}
	if c.actor.Deposit < a.Amount {
		return model.Receipt{}, model.Reject(model.KindInsufficientFunds, "deposit holds %d coins", c.actor.Deposit)
	}
	c.actor.Deposit -= a.Amount
	c.actor.Balance += a.Amount
	c.record("withdraw", a.Amount, "bank", "")

	r := c.receipt(KindWithdraw)
	r.Amount = a.Amount
	return r, nil
}
