package game

import (
	"time"

	"kidsmoney/internal/model"
)

// PublicState is the state as one viewer may see it. Forbidden stocks,
// other players' ledgers and other people's calls and messages are left
// out; staff see every request.
type PublicState struct {
	Revision        int64 `json:"revision"`
	Turn            int   `json:"turn"`
	IsDay           bool  `json:"isDay"`
	TimeRemainingMS int64 `json:"timeRemaining"`
	IsTimerRunning  bool  `json:"isTimerRunning"`

	Me      *model.User  `json:"me,omitempty"`
	Unread  int          `json:"unread"`
	Players []PlayerView `json:"players"`
	Stocks  []StockView  `json:"stocks"`
	Lands   []model.Land `json:"lands"`

	Economy      model.Economy       `json:"economy"`
	Environment  model.Environment   `json:"environment"`
	Settings     model.Settings      `json:"settings"`
	ActiveEvents []model.ActiveEvent `json:"activeEvents"`
	ActiveNPCs   []model.ActiveNPC   `json:"activeNPCs"`

	Requests  []model.Request  `json:"requests"`
	Calls     []model.Call     `json:"calls"`
	Messages  []model.Message  `json:"messages"`
	Proposals []model.Proposal `json:"proposals"`
	News      []model.NewsItem `json:"news"`
}

type PlayerView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Role       model.Role `json:"role"`
	Popularity int        `json:"popularity"`
	Happiness  int        `json:"happiness"`
	Rating     int        `json:"rating"`
	Job        string     `json:"job,omitempty"`
}

type StockView struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Price         int64   `json:"price"`
	PreviousPrice int64   `json:"previousPrice"`
	ChangeBps     int64   `json:"changeBps"`
	Volatility    float64 `json:"volatility"`
	Forbidden     bool    `json:"forbidden,omitempty"`
}

type StockDetail struct {
	StockView
	Series []PricePoint `json:"series"`
}

type PricePoint struct {
	Turn  int       `json:"turn"`
	Price int64     `json:"price"`
	At    time.Time `json:"at"`
}

type LeaderboardRow struct {
	Rank     int64  `json:"rank"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	NetWorth int64  `json:"netWorth"`
}

type TickResult struct {
	Revision     int64 `json:"revision"`
	Changed      bool  `json:"changed"`
	TurnsCrossed int   `json:"turnsCrossed"`
	Notified     int   `json:"notified"`
}

type Result struct {
	Receipt model.Receipt `json:"receipt"`
	State   PublicState   `json:"state"`
}
