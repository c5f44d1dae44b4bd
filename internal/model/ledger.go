package model

import (
	"time"

	"github.com/google/uuid"
)

func (u *User) Record(kind string, amount int64, counterparty, note string, turn int, now time.Time) {
	u.Transactions = append(u.Transactions, Transaction{
		ID:           uuid.NewString(),
		Kind:         kind,
		Amount:       amount,
		Counterparty: counterparty,
		Note:         note,
		Turn:         turn,
		At:           now.UTC(),
	})
}

func (u *User) Audit(action, detail string, now time.Time) {
	u.Logs = append(u.Logs, AuditLog{Action: action, Detail: detail, At: now.UTC()})
}

func (u *User) AdjustHappiness(delta int) {
	u.Happiness = max(0, min(100, u.Happiness+delta))
}

func (s *GameState) AddNews(category, headline string, now time.Time) {
	s.News = append(s.News, NewsItem{
		ID:       uuid.NewString(),
		Turn:     s.Turn,
		Category: category,
		Headline: headline,
		At:       now.UTC(),
	})
	if over := len(s.News) - MaxNews; over > 0 {
		s.News = append([]NewsItem(nil), s.News[over:]...)
	}
}
