package action

import (
	"fmt"

	"github.com/google/uuid"

	"kidsmoney/internal/model"
)

func buyLand(c *applyCtx, a Action) (model.Receipt, error) {
	l := c.st.Land(a.LandID)
	if l == nil {
		return model.Receipt{}, model.Reject(model.KindNotFound, "unknown parcel %q", a.LandID)
	}
	if l.OwnerID != nil || l.Status == model.LandSold {
		return model.Receipt{}, model.Reject(model.KindConflict, "parcel %s already sold", l.ID)
	}
	if l.Status != model.LandPublished {
		return model.Receipt{}, model.Reject(model.KindConflict, "parcel %s is not for sale", l.ID)
	}
	if l.Kind == model.KindLand && c.st.OwnedLand(c.actor.ID) != nil {
		return model.Receipt{}, model.Reject(model.KindConflict, "already own a parcel")
	}
	if c.actor.Balance < l.Price {
		return model.Receipt{}, model.Reject(model.KindInsufficientFunds, "need %d coins, have %d", l.Price, c.actor.Balance)
	}

	owner := c.actor.ID
	soldAt := c.now
	l.OwnerID = &owner
	l.Status = model.LandSold
	l.SoldAt = &soldAt
	c.actor.Balance -= l.Price
	c.actor.Popularity += 5
	c.st.Treasury.Sales += l.Price
	c.record("buy_land", -l.Price, "system", l.Name)
	c.st.AddNews("land", fmt.Sprintf("%s bought %s for %d coins", c.actor.Name, l.Name, l.Price), c.now)

	r := c.receipt(KindBuyLand)
	r.EntityID = l.ID
	r.Amount = l.Price
	return r, nil
}

func adminCreateLand(c *applyCtx, a Action) (model.Receipt, error) {
	if err := requireRole(c, model.RoleAdmin); err != nil {
		return model.Receipt{}, err
	}
	d := a.Land
	if d == nil || d.Name == "" {
		return model.Receipt{}, model.Reject(model.KindValidation, "land name is required")
	}
	if err := positive("price", d.Price); err != nil {
		return model.Receipt{}, err
	}
	kind := d.Kind
	if kind == "" {
		kind = model.KindLand
	}
	switch kind {
	case model.KindLand, model.KindPlace, model.KindProperty:
	default:
		return model.Receipt{}, model.Reject(model.KindValidation, "invalid land kind %q", d.Kind)
	}
	status := model.LandDraft
	if d.Publish {
		status = model.LandPublished
	}

	l := model.Land{
		ID:     "A-" + uuid.NewString()[:8],
		Kind:   kind,
		Name:   d.Name,
		X:      d.X,
		Y:      d.Y,
		Price:  d.Price,
		Status: status,
	}
	c.st.Lands = append(c.st.Lands, l)

	r := c.receipt(KindAdminCreateLand)
	r.EntityID = l.ID
	r.Amount = l.Price
	return r, nil
}

func landFor(c *applyCtx, id string) (*model.Land, error) {
	l := c.st.Land(id)
	if l == nil {
		return nil, model.Reject(model.KindNotFound, "unknown parcel %q", id)
	}
	if c.actor.Role == model.RoleAdmin {
		return l, nil
	}
	if l.OwnerID == nil || *l.OwnerID != c.actor.ID {
		return nil, model.Reject(model.KindForbidden, "only the owner or an admin may change parcel %s", l.ID)
	}
	return l, nil
}

func editLand(c *applyCtx, a Action) (model.Receipt, error) {
	l, err := landFor(c, a.LandID)
	if err != nil {
		return model.Receipt{}, err
	}
	d := a.Land
	if d == nil {
		return model.Receipt{}, model.Reject(model.KindValidation, "nothing to edit")
	}
	if d.Price != 0 {
		if c.actor.Role != model.RoleAdmin {
			return model.Receipt{}, model.Reject(model.KindForbidden, "only an admin may reprice a parcel")
		}
		if l.Status == model.LandSold {
			return model.Receipt{}, model.Reject(model.KindConflict, "parcel %s is sold", l.ID)
		}
		if err := positive("price", d.Price); err != nil {
			return model.Receipt{}, err
		}
		l.Price = d.Price
	}
	if d.Name != "" {
		l.Name = d.Name
	}

	r := c.receipt(KindEditLand)
	r.EntityID = l.ID
	return r, nil
}

func adminPublishLand(c *applyCtx, a Action) (model.Receipt, error) {
	return moveLand(c, a, KindAdminPublishLand, model.LandDraft, model.LandPublished)
}

func adminUnpublishLand(c *applyCtx, a Action) (model.Receipt, error) {
	return moveLand(c, a, KindAdminUnpublish, model.LandPublished, model.LandDraft)
}

func moveLand(c *applyCtx, a Action, kind Kind, from, to model.LandStatus) (model.Receipt, error) {
	if err := requireRole(c, model.RoleAdmin); err != nil {
		return model.Receipt{}, err
	}
	l := c.st.Land(a.LandID)
	if l == nil {
		return model.Receipt{}, model.Reject(model.KindNotFound, "unknown parcel %q", a.LandID)
	}
	if l.Status != from {
		return model.Receipt{}, model.Reject(model.KindConflict, "parcel %s is %s, not %s", l.ID, l.Status, from)
	}
	l.Status = to

	r := c.receipt(kind)
	r.EntityID = l.ID
	return r, nil
}

func deleteLand(c *applyCtx, a Action) (model.Receipt, error) {
	l, err := landFor(c, a.LandID)
	if err != nil {
		return model.Receipt{}, err
	}
	if l.Status == model.LandSold {
		return model.Receipt{}, model.Reject(model.KindConflict, "parcel %s is sold", l.ID)
	}
	id := l.ID
	lands := c.st.Lands[:0]
	for _, x := range c.st.Lands {
		if x.ID != id {
			lands = append(lands, x)
		}
	}
	c.st.Lands = lands

	r := c.receipt(KindDeleteLand)
	r.EntityID = id
	return r, nil
}
