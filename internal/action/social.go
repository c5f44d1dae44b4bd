package action

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kidsmoney/internal/model"
)

func sendMessage(c *applyCtx, a Action) (model.Receipt, error) {
	if a.Body == "" {
		return model.Receipt{}, model.Reject(model.KindValidation, "message body is required")
	}
	if utf8.RuneCountInString(a.Body) > MaxMessageLength {
		return model.Receipt{}, model.Reject(model.KindValidation, "message longer than %d characters", MaxMessageLength)
	}
	if a.TargetID == c.actor.ID {
		return model.Receipt{}, model.Reject(model.KindValidation, "cannot message yourself")
	}
	if c.st.User(a.TargetID) == nil {
		return model.Receipt{}, model.Reject(model.KindNotFound, "unknown user %q", a.TargetID)
	}
	m := model.Message{
		ID:     uuid.NewString(),
		From:   c.actor.ID,
		To:     a.TargetID,
		Body:   a.Body,
		SentAt: c.now,
	}
	c.st.Messages = append(c.st.Messages, m)

	r := c.receipt(KindSendMessage)
	r.EntityID = m.ID
	return r, nil
}

func readMessages(c *applyCtx, _ Action) (model.Receipt, error) {
	var n int64
	for i := range c.st.Messages {
		m := &c.st.Messages[i]
		if m.To == c.actor.ID && !m.Read {
			m.Read = true
			n++
		}
	}
	r := c.receipt(KindReadMessages)
	r.Quantity = n
	return r, nil
}

func startCall(c *applyCtx, a Action) (model.Receipt, error) {
	if a.TargetID == c.actor.ID {
		return model.Receipt{}, model.Reject(model.KindValidation, "cannot call yourself")
	}
	if c.st.User(a.TargetID) == nil {
		return model.Receipt{}, model.Reject(model.KindNotFound, "unknown user %q", a.TargetID)
	}
	for _, call := range c.st.Calls {
		if call.Status.Terminal() {
			continue
		}
		if involves(call, c.actor.ID) || involves(call, a.TargetID) {
			return model.Receipt{}, model.Reject(model.KindConflict, "line busy")
		}
	}
	call := model.Call{
		ID:         uuid.NewString(),
		CallerID:   c.actor.ID,
		ReceiverID: a.TargetID,
		Status:     model.CallPending,
		CreatedAt:  c.now,
		UpdatedAt:  c.now,
	}
	c.st.Calls = append(c.st.Calls, call)

	r := c.receipt(KindStartCall)
	r.EntityID = call.ID
	return r, nil
}

func involves(call model.Call, userID string) bool {
	return call.CallerID == userID || call.ReceiverID == userID
}

func callFor(c *applyCtx, id string, receiverOnly bool) (*model.Call, error) {
	call := c.st.Call(id)
	if call == nil {
		return nil, model.Reject(model.KindNotFound, "unknown call %q", id)
	}
	if !involves(*call, c.actor.ID) {
		return nil, model.Reject(model.KindForbidden, "not a participant of call %s", call.ID)
	}
	if receiverOnly && call.ReceiverID != c.actor.ID {
		return nil, model.Reject(model.KindForbidden, "only the receiver may answer call %s", call.ID)
	}
	return call, nil
}

func acceptCall(c *applyCtx, a Action) (model.Receipt, error) {
	call, err := callFor(c, a.CallID, true)
	if err != nil {
		return model.Receipt{}, err
	}
	if call.Status != model.CallPending {
		return model.Receipt{}, model.Reject(model.KindConflict, "call %s is %s", call.ID, call.Status)
	}
	call.Status = model.CallActive
	call.Token = uuid.NewString()
	call.UpdatedAt = c.now

	r := c.receipt(KindAcceptCall)
	r.EntityID = call.ID
	return r, nil
}

func declineCall(c *applyCtx, a Action) (model.Receipt, error) {
	call, err := callFor(c, a.CallID, true)
	if err != nil {
		return model.Receipt{}, err
	}
	if call.Status != model.CallPending {
		return model.Receipt{}, model.Reject(model.KindConflict, "call %s is %s", call.ID, call.Status)
	}
	call.Status = model.CallDeclined
	call.UpdatedAt = c.now

	r := c.receipt(KindDeclineCall)
	r.EntityID = call.ID
	return r, nil
}

func endCall(c *applyCtx, a Action) (model.Receipt, error) {
	call, err := callFor(c, a.CallID, false)
	if err != nil {
		return model.Receipt{}, err
	}
	if call.Status.Terminal() {
		return model.Receipt{}, model.Reject(model.KindConflict, "call %s is %s", call.ID, call.Status)
	}
	call.Status = model.CallEnded
	call.Token = ""
	call.UpdatedAt = c.now

	r := c.receipt(KindEndCall)
	r.EntityID = call.ID
	return r, nil
}

var maxProposalTax = decimal.RequireFromString("0.5")

const maxGrant = 1_000

func proposePolicy(c *applyCtx, a Action) (model.Receipt, error) {
	d := a.Proposal
	if d == nil || d.Title == "" {
		return model.Receipt{}, model.Reject(model.KindValidation, "proposal title is required")
	}
	switch d.Effect.Kind {
	case "tax_rate":
		if d.Effect.TaxRate.IsNegative() || d.Effect.TaxRate.GreaterThan(maxProposalTax) {
			return model.Receipt{}, model.Reject(model.KindValidation, "tax rate must be within 0..%s", maxProposalTax)
		}
	case "grant":
		if d.Effect.Amount <= 0 || d.Effect.Amount > maxGrant {
			return model.Receipt{}, model.Reject(model.KindValidation, "grant must be within 1..%d", maxGrant)
		}
	default:
		return model.Receipt{}, model.Reject(model.KindValidation, "unknown effect %q", d.Effect.Kind)
	}
	for _, p := range c.st.Proposals {
		if p.Status == model.ProposalActive {
			return model.Receipt{}, model.Reject(model.KindConflict, "election already active")
		}
	}

	dur := c.cfg.ProposalDuration
	if d.DurationMS > 0 {
		dur = time.Duration(d.DurationMS) * time.Millisecond
	}
	if dur < c.cfg.MinProposalDuration || dur > c.cfg.MaxProposalDuration {
		return model.Receipt{}, model.Reject(model.KindValidation, "duration must be within %s..%s", c.cfg.MinProposalDuration, c.cfg.MaxProposalDuration)
	}

	p := model.Proposal{
		ID:         uuid.NewString(),
		Title:      d.Title,
		ProposerID: c.actor.ID,
		Effect:     d.Effect,
		Votes:      map[string]bool{},
		Deadline:   c.now.Add(dur),
		Status:     model.ProposalActive,
	}
	c.st.Proposals = append(c.st.Proposals, p)
	c.st.AddNews("governance", fmt.Sprintf("%s proposed %q", c.actor.Name, p.Title), c.now)

	r := c.receipt(KindProposePolicy)
	r.EntityID = p.ID
	return r, nil
}

func votePolicy(c *applyCtx, a Action) (model.Receipt, error) {
	if a.Approve == nil {
		return model.Receipt{}, model.Reject(model.KindValidation, "approve is required")
	}
	p := c.st.Proposal(a.TargetID)
	if p == nil {
		return model.Receipt{}, model.Reject(model.KindNotFound, "unknown proposal %q", a.TargetID)
	}
	if p.Status != model.ProposalActive || !c.now.Before(p.Deadline) {
		return model.Receipt{}, model.Reject(model.KindConflict, "voting on %s is closed", p.ID)
	}
	if p.Votes == nil {
		p.Votes = map[string]bool{}
	}
	if _, ok := p.Votes[c.actor.ID]; ok {
		return model.Receipt{}, model.Reject(model.KindConflict, "duplicate vote")
	}
	p.Votes[c.actor.ID] = *a.Approve

	r := c.receipt(KindVotePolicy)
	r.EntityID = p.ID
	r.Quantity = int64(len(p.Votes))
	return r, nil
}
