package action

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kidsmoney/internal/model"
)

type Kind string

const (
	KindSignup          Kind = "signup"
	KindBuyStock        Kind = "buy_stock"
	KindSellStock       Kind = "sell_stock"
	KindUnlockForbidden Kind = "unlock_forbidden"
	KindBuyLand         Kind = "buy_land"
	KindTakeLoan        Kind = "take_loan"
	KindRepayLoan       Kind = "repay_loan"
	KindRequestLoan     Kind = "request_loan"
	KindDecideRequest   Kind = "decide_request"
	KindDeposit         Kind = "deposit"
	KindWithdraw        Kind = "withdraw"
	KindSetJob          Kind = "set_job"
	KindJobResult       Kind = "job_result"
	KindPurchaseItem    Kind = "purchase_item"
	KindTransfer        Kind = "transfer"
	KindSendMessage     Kind = "send_message"
	KindReadMessages    Kind = "read_messages"
	KindStartCall       Kind = "start_call"
	KindAcceptCall      Kind = "accept_call"
	KindDeclineCall     Kind = "decline_call"
	KindEndCall         Kind = "end_call"
	KindProposePolicy   Kind = "propose_policy"
	KindVotePolicy      Kind = "vote_policy"

	KindAdminGrant       Kind = "admin_grant"
	KindAdminSettings    Kind = "admin_settings"
	KindAdminCreateLand  Kind = "admin_create_land"
	KindEditLand         Kind = "edit_land"
	KindAdminPublishLand Kind = "admin_publish_land"
	KindAdminUnpublish   Kind = "admin_unpublish_land"
	KindDeleteLand       Kind = "delete_land"
	KindAdminTimer       Kind = "admin_timer"
	KindAdminReset       Kind = "admin_reset"
)

var Kinds = []Kind{
	KindSignup, KindBuyStock, KindSellStock, KindUnlockForbidden, KindBuyLand,
	KindTakeLoan, KindRepayLoan, KindRequestLoan, KindDecideRequest, KindDeposit, KindWithdraw,
	KindSetJob, KindJobResult, KindPurchaseItem, KindTransfer,
	KindSendMessage, KindReadMessages, KindStartCall, KindAcceptCall, KindDeclineCall, KindEndCall,
	KindProposePolicy, KindVotePolicy,
	KindAdminGrant, KindAdminSettings, KindAdminCreateLand, KindEditLand, KindAdminPublishLand,
	KindAdminUnpublish, KindDeleteLand, KindAdminTimer, KindAdminReset,
}

// Action is one player or admin intent. Only the fields relevant to Kind
// are read. TargetID names the other user of a transfer, message or call,
// or the proposal of a vote.
type Action struct {
	Kind    Kind   `json:"kind"`
	ActorID string `json:"actorId"`
	Key     string `json:"key,omitempty"`

	StockID   string `json:"stockId,omitempty"`
	Forbidden bool   `json:"forbidden,omitempty"`
	Quantity  int64  `json:"quantity,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
	LandID    string `json:"landId,omitempty"`
	TargetID  string `json:"targetId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	CallID    string `json:"callId,omitempty"`
	Item      string `json:"item,omitempty"`
	Job       string `json:"job,omitempty"`
	Score     int64  `json:"score,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	Body      string `json:"body,omitempty"`
	Approve   *bool  `json:"approve,omitempty"`
	Running   *bool  `json:"running,omitempty"`

	Land     *LandDraft     `json:"land,omitempty"`
	Settings *SettingsPatch `json:"settings,omitempty"`
	Proposal *ProposalDraft `json:"proposal,omitempty"`
}

type LandDraft struct {
	Kind    model.LandKind `json:"kind,omitempty"`
	Name    string         `json:"name,omitempty"`
	X       int            `json:"x,omitempty"`
	Y       int            `json:"y,omitempty"`
	Price   int64          `json:"price,omitempty"`
	Publish bool           `json:"publish,omitempty"`
}

type SettingsPatch struct {
	TaxRate          *decimal.Decimal `json:"taxRate,omitempty"`
	DepositRate      *decimal.Decimal `json:"depositRate,omitempty"`
	LoanRate         *decimal.Decimal `json:"loanRate,omitempty"`
	SalaryMultiplier *decimal.Decimal `json:"salaryMultiplier,omitempty"`
	LoanCap          *int64           `json:"loanCap,omitempty"`
	TurnDurationMS   *int64           `json:"turnDurationMs,omitempty"`
}

type ProposalDraft struct {
	Title      string               `json:"title"`
	Effect     model.ProposalEffect `json:"effect"`
	DurationMS int64                `json:"durationMs"`
}

func (a Action) describe() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	num := func(k string, v int64) {
		if v != 0 {
			add(k, strconv.FormatInt(v, 10))
		}
	}
	add("stock", a.StockID)
	num("qty", a.Quantity)
	num("amount", a.Amount)
	add("land", a.LandID)
	add("target", a.TargetID)
	add("request", a.RequestID)
	add("call", a.CallID)
	add("item", a.Item)
	add("job", a.Job)
	num("score", a.Score)
	if a.Key != "" {
		add("key", a.Key)
	}
	return strings.Join(parts, " ")
}

func (a *Action) normalize() {
	a.ActorID = strings.TrimSpace(a.ActorID)
	a.Key = strings.TrimSpace(a.Key)
	a.StockID = strings.ToUpper(strings.TrimSpace(a.StockID))
	a.LandID = strings.TrimSpace(a.LandID)
	a.TargetID = strings.TrimSpace(a.TargetID)
	a.Item = strings.TrimSpace(a.Item)
	a.Job = strings.TrimSpace(a.Job)
	a.Name = strings.TrimSpace(a.Name)
	a.Body = strings.TrimSpace(a.Body)
}

type applyCtx struct {
	st    *model.GameState
	actor *model.User
	now   time.Time
	cfg   Config
}

func (c *applyCtx) record(kind string, amount int64, counterparty, note string) {
	c.actor.Record(kind, amount, counterparty, note, c.st.Turn, c.now)
}

func (c *applyCtx) receipt(kind Kind) model.Receipt {
	return model.Receipt{
		Kind:    string(kind),
		ActorID: c.actor.ID,
		Balance: c.actor.Balance,
		Deposit: c.actor.Deposit,
		Debt:    c.actor.Debt,
		Turn:    c.st.Turn,
	}
}
