package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultTurnDuration = 60 * time.Second
	LandGridSize        = 6
	MaxNews             = 50
)

type stockSeed struct {
	ID         string
	Name       string
	Price      int64
	Volatility float64
	Forbidden  bool
}

var defaultStocks = []stockSeed{
	{"CANDY", "Candy Factory", 100, 0.04, false},
	{"TOYCO", "Toy Company", 150, 0.05, false},
	{"GREEN", "Green Farms", 80, 0.03, false},
	{"ROBOT", "Robot Works", 220, 0.07, false},
	{"PIZZA", "Pizza Palace", 60, 0.04, false},
	{"SPACE", "Space Rockets", 300, 0.09, false},
	{"SHADY", "Shady Deals Inc", 50, 0.12, true},
	{"MOONX", "Moon Coin", 25, 0.18, true},
	{"PIRAT", "Pirate Treasure", 90, 0.15, true},
}

func NewGameState(now time.Time, seed int64, turnDuration time.Duration) *GameState {
	if turnDuration <= 0 {
		turnDuration = DefaultTurnDuration
	}
	now = now.UTC()
	s := &GameState{
		Seed:            seed,
		Users:           []User{},
		TimeRemainingMS: turnDuration.Milliseconds(),
		IsTimerRunning:  true,
		LastTick:        now,
		LastMarketAt:    now,
		Turn:            1,
		IsDay:           true,
		Economy: Economy{
			Status:        RegimeNormal,
			InterestRate:  decimal.RequireFromString("0.02"),
			PriceIndex:    10_000,
			TaxAdjustment: decimal.Zero,
		},
		Environment: Environment{
			Weather:     "sunny",
			Season:      "spring",
			Temperature: 18,
			Infrastructure: map[string]int{
				"roads":    80,
				"power":    80,
				"water":    80,
				"hospital": 80,
			},
		},
		Settings: Settings{
			TaxRate:          decimal.RequireFromString("0.02"),
			DepositRate:      decimal.RequireFromString("0.01"),
			LoanRate:         decimal.Zero,
			SalaryMultiplier: decimal.NewFromInt(1),
			LoanCap:          DefaultLoanCap,
			TurnDurationMS:   turnDuration.Milliseconds(),
		},
		ActiveEvents:             []ActiveEvent{},
		ActiveNPCs:               []ActiveNPC{},
		Requests:                 []Request{},
		Calls:                    []Call{},
		Proposals:                []Proposal{},
		Messages:                 []Message{},
		News:                     []NewsItem{},
		ProcessedIdempotencyKeys: []ProcessedKey{},
	}

	for _, st := range defaultStocks {
		s.Stocks = append(s.Stocks, Stock{
			ID:            st.ID,
			Name:          st.Name,
			Price:         st.Price,
			PreviousPrice: st.Price,
			Anchor:        st.Price,
			Volatility:    st.Volatility,
			Forbidden:     st.Forbidden,
			History:       []PricePoint{{Turn: 1, Price: st.Price, At: now}},
		})
	}

	for y := 0; y < LandGridSize; y++ {
		for x := 0; x < LandGridSize; x++ {
			// Parcels nearer the town centre cost more.
			dist := abs(x-LandGridSize/2) + abs(y-LandGridSize/2)
			s.Lands = append(s.Lands, Land{
				ID:     fmt.Sprintf("L%d-%d", x, y),
				Kind:   KindLand,
				Name:   fmt.Sprintf("Parcel %d-%d", x, y),
				X:      x,
				Y:      y,
				Price:  int64(900 - 80*dist),
				Status: LandPublished,
			})
		}
	}
	places := []struct {
		id, name string
		kind     LandKind
		price    int64
	}{
		{"P-bakery", "Corner Bakery", KindPlace, 1_200},
		{"P-cinema", "Old Cinema", KindPlace, 2_500},
		{"H-cottage", "Cottage", KindProperty, 700},
		{"H-treehouse", "Treehouse", KindProperty, 300},
	}
	for _, p := range places {
		s.Lands = append(s.Lands, Land{ID: p.id, Kind: p.kind, Name: p.name, Price: p.price, Status: LandPublished})
	}
	return s
}

func NewUser(id, name string, role Role, now time.Time) User {
	return User{
		ID:              id,
		Name:            name,
		Role:            role,
		Balance:         StarterBalance,
		Happiness:       50,
		Popularity:      0,
		Rating:          0,
		Stocks:          map[string]int64{},
		ForbiddenStocks: map[string]int64{},
		Inventory:       map[string]int64{},
		Transactions:    []Transaction{},
		Logs:            []AuditLog{},
		CreatedAt:       now.UTC(),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
