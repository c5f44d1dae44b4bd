package action

import (
	"time"

	"kidsmoney/internal/model"
)

const (
	DefaultIdempotencyCapacity = 4096
	DefaultUnlockFee           = int64(250)
	DefaultSuspicionPerTrade   = 5
	DefaultProposalDuration    = 5 * time.Minute
	MaxMessageLength           = 500
	MaxKeyLength               = 128
)

type Config struct {
	StarterBalance      int64
	IdempotencyCapacity int
	UnlockFee           int64
	SuspicionPerTrade   int
	ProposalDuration    time.Duration
	MinProposalDuration time.Duration
	MaxProposalDuration time.Duration
	MinTurnDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		StarterBalance:      model.StarterBalance,
		IdempotencyCapacity: DefaultIdempotencyCapacity,
		UnlockFee:           DefaultUnlockFee,
		SuspicionPerTrade:   DefaultSuspicionPerTrade,
		ProposalDuration:    DefaultProposalDuration,
		MinProposalDuration: time.Minute,
		MaxProposalDuration: time.Hour,
		MinTurnDuration:     5 * time.Second,
	}
}

type handler func(c *applyCtx, a Action) (model.Receipt, error)

var handlers = map[Kind]handler{
	KindSignup:           signup,
	KindBuyStock:         buyStock,
	KindSellStock:        sellStock,
	KindUnlockForbidden:  unlockForbidden,
	KindBuyLand:          buyLand,
	KindTakeLoan:         takeLoan,
	KindRepayLoan:        repayLoan,
	KindRequestLoan:      requestLoan,
	KindDecideRequest:    decideRequest,
	KindDeposit:          deposit,
	KindWithdraw:         withdraw,
	KindSetJob:           setJob,
	KindJobResult:        jobResult,
	KindPurchaseItem:     purchaseItem,
	KindTransfer:         transfer,
	KindSendMessage:      sendMessage,
	KindReadMessages:     readMessages,
	KindStartCall:        startCall,
	KindAcceptCall:       acceptCall,
	KindDeclineCall:      declineCall,
	KindEndCall:          endCall,
	KindProposePolicy:    proposePolicy,
	KindVotePolicy:       votePolicy,
	KindAdminGrant:       adminGrant,
	KindAdminSettings:    adminSettings,
	KindAdminCreateLand:  adminCreateLand,
	KindEditLand:         editLand,
	KindAdminPublishLand: adminPublishLand,
	KindAdminUnpublish:   adminUnpublishLand,
	KindDeleteLand:       deleteLand,
	KindAdminTimer:       adminTimer,
	KindAdminReset:       adminReset,
}

type Processor struct {
	cfg Config
}

func NewProcessor(cfg Config) *Processor {
	def := DefaultConfig()
	if cfg.StarterBalance <= 0 {
		cfg.StarterBalance = def.StarterBalance
	}
	if cfg.IdempotencyCapacity <= 0 {
		cfg.IdempotencyCapacity = def.IdempotencyCapacity
	}
	if cfg.UnlockFee <= 0 {
		cfg.UnlockFee = def.UnlockFee
	}
	if cfg.SuspicionPerTrade <= 0 {
		cfg.SuspicionPerTrade = def.SuspicionPerTrade
	}
	if cfg.ProposalDuration <= 0 {
		cfg.ProposalDuration = def.ProposalDuration
	}
	if cfg.MinProposalDuration <= 0 {
		cfg.MinProposalDuration = def.MinProposalDuration
	}
	if cfg.MaxProposalDuration < cfg.MinProposalDuration {
		cfg.MaxProposalDuration = max(def.MaxProposalDuration, cfg.MinProposalDuration)
	}
	if cfg.MinTurnDuration <= 0 {
		cfg.MinTurnDuration = def.MinTurnDuration
	}
	return &Processor{cfg: cfg}
}

func (p *Processor) Config() Config { return p.cfg }

// Apply mutates st in place. On error st may be partially modified, so the
// caller must discard it; the store does this by working on a copy.
func (p *Processor) Apply(st *model.GameState, a Action, now time.Time) (model.Receipt, error) {
	a.normalize()
	h, ok := handlers[a.Kind]
	if !ok {
		return model.Receipt{}, model.Reject(model.KindValidation, "unknown action kind %q", a.Kind)
	}
	if a.ActorID == "" {
		return model.Receipt{}, model.Reject(model.KindUnauthorized, "missing actor")
	}
	if len(a.Key) > MaxKeyLength {
		return model.Receipt{}, model.Reject(model.KindValidation, "idempotency key too long")
	}

	if a.Key != "" {
		if prior, ok := lookupKey(st, a.ActorID, a.Key); ok {
			if prior.Kind != string(a.Kind) {
				return model.Receipt{}, model.Reject(model.KindConflict, "idempotency key already used for %s", prior.Kind)
			}
			prior.Replayed = true
			return prior, nil
		}
	}

	c := &applyCtx{st: st, now: now.UTC(), cfg: p.cfg}
	if a.Kind != KindSignup {
		c.actor = st.User(a.ActorID)
		if c.actor == nil {
			return model.Receipt{}, model.Reject(model.KindUnauthorized, "unknown user %q", a.ActorID)
		}
	}

	r, err := h(c, a)
	if err != nil {
		return model.Receipt{}, err
	}

	// Handlers that replace Users must re-point c.actor.
	c.actor.Audit(string(a.Kind), a.describe(), c.now)
	if a.Key != "" {
		rememberKey(st, model.ProcessedKey{ActorID: a.ActorID, Key: a.Key, Receipt: r}, p.cfg.IdempotencyCapacity)
	}
	return r, nil
}

func lookupKey(st *model.GameState, actorID, key string) (model.Receipt, bool) {
	for i := len(st.ProcessedIdempotencyKeys) - 1; i >= 0; i-- {
		k := st.ProcessedIdempotencyKeys[i]
		if k.ActorID == actorID && k.Key == key {
			return k.Receipt, true
		}
	}
	return model.Receipt{}, false
}

func rememberKey(st *model.GameState, pk model.ProcessedKey, capacity int) {
	st.ProcessedIdempotencyKeys = append(st.ProcessedIdempotencyKeys, pk)
	if over := len(st.ProcessedIdempotencyKeys) - capacity; over > 0 {
		st.ProcessedIdempotencyKeys = append([]model.ProcessedKey(nil), st.ProcessedIdempotencyKeys[over:]...)
	}
}

func requireRole(c *applyCtx, roles ...model.Role) error {
	for _, r := range roles {
		if c.actor.Role == r {
			return nil
		}
	}
	return model.Reject(model.KindForbidden, "%s may not perform this action", c.actor.Role)
}

func positive(name string, v int64) error {
	if v <= 0 {
		return model.Reject(model.KindValidation, "%s must be > 0", name)
	}
	return nil
}
