package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RolePlayer Role = "player"
	RoleBanker Role = "banker"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RolePlayer || r == RoleBanker || r == RoleAdmin
}

type Regime string

const (
	RegimeBoom      Regime = "boom"
	RegimeNormal    Regime = "normal"
	RegimeRecession Regime = "recession"
	RegimeCrisis    Regime = "crisis"
)

type LandStatus string

const (
	LandDraft     LandStatus = "DRAFT"
	LandPublished LandStatus = "PUBLISHED"
	LandSold      LandStatus = "SOLD"
)

type LandKind string

const (
	KindLand     LandKind = "land"
	KindPlace    LandKind = "place"
	KindProperty LandKind = "property"
)

type CallStatus string

const (
	CallPending  CallStatus = "PENDING"
	CallActive   CallStatus = "ACTIVE"
	CallEnded    CallStatus = "ENDED"
	CallDeclined CallStatus = "DECLINED"
	CallMissed   CallStatus = "MISSED"
)

func (s CallStatus) Terminal() bool {
	return s == CallEnded || s == CallDeclined || s == CallMissed
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

type ProposalStatus string

const (
	ProposalActive   ProposalStatus = "active"
	ProposalPassed   ProposalStatus = "passed"
	ProposalRejected ProposalStatus = "rejected"
)

// GameState is the whole simulation snapshot. It is persisted as a single
// JSON document; all money fields are integer coins.
type GameState struct {
	Seed int64 `json:"seed"`

	Users  []User  `json:"users"`
	Stocks []Stock `json:"stocks"`
	Lands  []Land  `json:"lands"`

	Economy     Economy     `json:"economy"`
	Environment Environment `json:"environment"`
	Settings    Settings    `json:"settings"`
	Treasury    Treasury    `json:"treasury"`

	ActiveEvents []ActiveEvent `json:"activeEvents"`
	ActiveNPCs   []ActiveNPC   `json:"activeNPCs"`

	TimeRemainingMS int64     `json:"timeRemaining"`
	IsTimerRunning  bool      `json:"isTimerRunning"`
	LastTick        time.Time `json:"lastTick"`
	LastMarketAt    time.Time `json:"lastMarketAt"`
	Turn            int       `json:"turn"`
	IsDay           bool      `json:"isDay"`

	Requests  []Request  `json:"requests"`
	Calls     []Call     `json:"calls"`
	Proposals []Proposal `json:"proposals"`
	Messages  []Message  `json:"messages"`
	News      []NewsItem `json:"news"`

	ProcessedIdempotencyKeys []ProcessedKey `json:"processedIdempotencyKeys"`
	EventRevision            int64          `json:"eventRevision"`
}

type User struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Role              Role             `json:"role"`
	Balance           int64            `json:"balance"`
	Deposit           int64            `json:"deposit"`
	Debt              int64            `json:"debt"`
	Job               string           `json:"job,omitempty"`
	Popularity        int              `json:"popularity"`
	Happiness         int              `json:"happiness"`
	Rating            int              `json:"rating"`
	Stocks            map[string]int64 `json:"stocks"`
	ForbiddenStocks   map[string]int64 `json:"forbiddenStocks"`
	ForbiddenUnlocked bool             `json:"forbiddenUnlocked"`
	Inventory         map[string]int64 `json:"inventory"`
	Transactions      []Transaction    `json:"transactions"`
	Logs              []AuditLog       `json:"logs"`
	Suspicion         int              `json:"suspicion"`
	CreatedAt         time.Time        `json:"createdAt"`
}

type Transaction struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Amount       int64     `json:"amount"`
	Counterparty string    `json:"counterparty,omitempty"`
	Note         string    `json:"note,omitempty"`
	Turn         int       `json:"turn"`
	At           time.Time `json:"at"`
}

type AuditLog struct {
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

type Stock struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Price         int64        `json:"price"`
	PreviousPrice int64        `json:"previousPrice"`
	Anchor        int64        `json:"anchor"`
	Volatility    float64      `json:"volatility"`
	Forbidden     bool         `json:"forbidden"`
	History       []PricePoint `json:"history"`
}

type PricePoint struct {
	Turn  int       `json:"turn"`
	Price int64     `json:"price"`
	At    time.Time `json:"at"`
}

type Land struct {
	ID      string     `json:"id"`
	Kind    LandKind   `json:"kind"`
	Name    string     `json:"name"`
	X       int        `json:"x"`
	Y       int        `json:"y"`
	Price   int64      `json:"price"`
	Status  LandStatus `json:"status"`
	OwnerID *string    `json:"ownerId"`
	SoldAt  *time.Time `json:"soldAt,omitempty"`
}

type Economy struct {
	Status         Regime          `json:"status"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	PriceIndex     int64           `json:"priceIndex"`
	Trend          int             `json:"trend"`
	TaxAdjustment  decimal.Decimal `json:"taxAdjustment"`
	LastUpdateTurn int             `json:"lastUpdateTurn"`
	RegimeSince    int             `json:"regimeSince"`
}

type Environment struct {
	Weather          string         `json:"weather"`
	Season           string         `json:"season"`
	Temperature      int            `json:"temperature"`
	WeatherUntilTurn int            `json:"weatherUntilTurn"`
	Disaster         *Disaster      `json:"disaster"`
	Infrastructure   map[string]int `json:"infrastructure"`
}

type Disaster struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Severity       int    `json:"severity"`
	RemainingTurns int    `json:"remainingTurns"`
	StartedTurn    int    `json:"startedTurn"`
}

type Settings struct {
	TaxRate          decimal.Decimal `json:"taxRate"`
	DepositRate      decimal.Decimal `json:"depositRate"`
	LoanRate         decimal.Decimal `json:"loanRate"`
	SalaryMultiplier decimal.Decimal `json:"salaryMultiplier"`
	LoanCap          int64           `json:"loanCap"`
	TurnDurationMS   int64           `json:"turnDurationMs"`
}

// Treasury tracks currency leaving and entering player hands. Market is the
// net cash players paid into the stock market and goes negative when they
// sell at a profit.
type Treasury struct {
	Taxes  int64 `json:"taxes"`
	Fees   int64 `json:"fees"`
	Sales  int64 `json:"sales"`
	Market int64 `json:"market"`
	Burned int64 `json:"burned"`
	Minted int64 `json:"minted"`
}

type ActiveEvent struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"templateId"`
	Title      string    `json:"title"`
	Drift      float64   `json:"drift,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
}

func (e ActiveEvent) Expired(now time.Time) bool {
	return now.Sub(e.StartedAt) >= time.Duration(e.DurationMS)*time.Millisecond
}

type ActiveNPC struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"templateId"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
}

func (n ActiveNPC) Expired(now time.Time) bool {
	return now.Sub(n.StartedAt) >= time.Duration(n.DurationMS)*time.Millisecond
}

type Request struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	UserID    string        `json:"userId"`
	Amount    int64         `json:"amount"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	DecidedBy string        `json:"decidedBy,omitempty"`
	DecidedAt *time.Time    `json:"decidedAt,omitempty"`
}

type Call struct {
	ID         string     `json:"id"`
	CallerID   string     `json:"callerId"`
	ReceiverID string     `json:"receiverId"`
	Status     CallStatus `json:"status"`
	Token      string     `json:"token,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type ProposalEffect struct {
	Kind    string          `json:"kind"`
	TaxRate decimal.Decimal `json:"taxRate"`
	Amount  int64           `json:"amount"`
}

type Proposal struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	ProposerID string          `json:"proposerId"`
	Effect     ProposalEffect  `json:"effect"`
	Votes      map[string]bool `json:"votes"`
	Deadline   time.Time       `json:"deadline"`
	Status     ProposalStatus  `json:"status"`
	Applied    bool            `json:"applied"`
}

type Message struct {
	ID     string    `json:"id"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sentAt"`
	Read   bool      `json:"read"`
}

type NewsItem struct {
	ID       string    `json:"id"`
	Turn     int       `json:"turn"`
	Category string    `json:"category"`
	Headline string    `json:"headline"`
	At       time.Time `json:"at"`
}

type ProcessedKey struct {
	ActorID string  `json:"actorId"`
	Key     string  `json:"key"`
	Receipt Receipt `json:"receipt"`
}

type Receipt struct {
	Kind     string `json:"kind"`
	ActorID  string `json:"actorId"`
	EntityID string `json:"entityId,omitempty"`
	Amount   int64  `json:"amount,omitempty"`
	Quantity int64  `json:"quantity,omitempty"`
	Balance  int64  `json:"balance"`
	Deposit  int64  `json:"deposit"`
	Debt     int64  `json:"debt"`
	Turn     int    `json:"turn"`
	Replayed bool   `json:"replayed,omitempty"`
}

func (s *GameState) User(id string) *User {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return &s.Users[i]
		}
	}
	return nil
}

func (s *GameState) Stock(id string) *Stock {
	for i := range s.Stocks {
		if s.Stocks[i].ID == id {
			return &s.Stocks[i]
		}
	}
	return nil
}

func (s *GameState) Land(id string) *Land {
	for i := range s.Lands {
		if s.Lands[i].ID == id {
			return &s.Lands[i]
		}
	}
	return nil
}

func (s *GameState) Call(id string) *Call {
	for i := range s.Calls {
		if s.Calls[i].ID == id {
			return &s.Calls[i]
		}
	}
	return nil
}

func (s *GameState) Proposal(id string) *Proposal {
	for i := range s.Proposals {
		if s.Proposals[i].ID == id {
			return &s.Proposals[i]
		}
	}
	return nil
}

func (s *GameState) Request(id string) *Request {
	for i := range s.Requests {
		if s.Requests[i].ID == id {
			return &s.Requests[i]
		}
	}
	return nil
}

func (s *GameState) OwnedLand(userID string) *Land {
	for i := range s.Lands {
		l := &s.Lands[i]
		if l.Kind == KindLand && l.OwnerID != nil && *l.OwnerID == userID {
			return l
		}
	}
	return nil
}

func (s *GameState) UnreadCount(userID string) int {
	n := 0
	for _, m := range s.Messages {
		if m.To == userID && !m.Read {
			n++
		}
	}
	return n
}

// Encode returns the canonical JSON document for the state. encoding/json
// sorts map keys, so equal states always encode to equal bytes.
func Encode(s *GameState) ([]byte, error) {
	return json.Marshal(s)
}

func Decode(raw []byte) (*GameState, error) {
	var s GameState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func Clone(s *GameState) (*GameState, error) {
	raw, err := Encode(s)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}
