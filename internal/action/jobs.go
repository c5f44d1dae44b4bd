package action

import (
	"fmt"

	"kidsmoney/internal/model"
)

func setJob(c *applyCtx, a Action) (model.Receipt, error) {
	job, ok := model.JobByID(a.Job)
	if !ok {
		return model.Receipt{}, model.Reject(model.KindValidation, "unknown job %q", a.Job)
	}
	if c.actor.Job == job.ID {
		return model.Receipt{}, model.Reject(model.KindConflict, "already working as %s", job.Title)
	}
	c.actor.Job = job.ID

	r := c.receipt(KindSetJob)
	r.EntityID = job.ID
	return r, nil
}

func jobResult(c *applyCtx, a Action) (model.Receipt, error) {
	job, ok := model.JobByID(c.actor.Job)
	if !ok {
		return model.Receipt{}, model.Reject(model.KindConflict, "no job selected")
	}
	if err := positive("score", a.Score); err != nil {
		return model.Receipt{}, err
	}
	pay := min(a.Score/max(job.PointsPerCoin, 1), job.MaxPayout)
	if pay > 0 {
		c.actor.Balance += pay
		c.st.Treasury.Minted += pay
		c.record("job_result", pay, job.ID, fmt.Sprintf("score %d", a.Score))
	}
	c.actor.Rating++

	r := c.receipt(KindJobResult)
	r.EntityID = job.ID
	r.Amount = pay
	return r, nil
}

func purchaseItem(c *applyCtx, a Action) (model.Receipt, error) {
	item, ok := model.ItemByID(a.Item)
	if !ok {
		return model.Receipt{}, model.Reject(model.KindValidation, "unknown item %q", a.Item)
	}
	qty := a.Quantity
	if qty == 0 {
		qty = 1
	}
	if err := positive("quantity", qty); err != nil {
		return model.Receipt{}, err
	}
	cost, err := model.Notional(item.Price, qty)
	if err != nil {
		return model.Receipt{}, model.Reject(model.KindValidation, "quantity too large")
	}
	if c.actor.Balance < cost {
		return model.Receipt{}, model.Reject(model.KindInsufficientFunds, "need %d coins, have %d", cost, c.actor.Balance)
	}

	c.actor.Balance -= cost
	c.st.Treasury.Sales += cost
	if c.actor.Inventory == nil {
		c.actor.Inventory = map[string]int64{}
	}
	c.actor.Inventory[item.ID] += qty
	c.actor.AdjustHappiness(item.Happiness * int(min(qty, 10)))
	c.record("purchase", -cost, "shop", fmt.Sprintf("%d x %s", qty, item.Name))

	r := c.receipt(KindPurchaseItem)
	r.EntityID = item.ID
	r.Amount = cost
	r.Quantity = qty
	return r, nil
}

func transfer(c *applyCtx, a Action) (model.Receipt, error) {
	if err := positive("amount", a.Amount); err != nil {
		return model.Receipt{}, err
	}
	if a.TargetID == c.actor.ID {
		return model.Receipt{}, model.Reject(model.KindValidation, "cannot transfer to yourself")
	}
	to := c.st.User(a.TargetID)
	if to == nil {
		return model.Receipt{}, model.Reject(model.KindNotFound, "unknown user %q", a.TargetID)
	}
	if c.actor.Balance < a.Amount {
		return model.Receipt{}, model.Reject(model.KindInsufficientFunds, "need %d coins, have %d", a.Amount, c.actor.Balance)
	}

	c.actor.Balance -= a.Amount
	to.Balance += a.Amount
	c.record("transfer_out", -a.Amount, to.ID, "")
	to.Record("transfer_in", a.Amount, c.actor.ID, "", c.st.Turn, c.now)

	r := c.receipt(KindTransfer)
	r.EntityID = to.ID
	r.Amount = a.Amount
	return r, nil
}
