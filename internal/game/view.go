package game

import (
	"kidsmoney/internal/model"
)

func view(st *model.GameState, viewerID string) PublicState {
	out := PublicState{
		Revision:        st.EventRevision,
		Turn:            st.Turn,
		IsDay:           st.IsDay,
		TimeRemainingMS: st.TimeRemainingMS,
		IsTimerRunning:  st.IsTimerRunning,
		Players:         make([]PlayerView, 0, len(st.Users)),
		Stocks:          stockViews(st, false),
		Lands:           st.Lands,
		Economy:         st.Economy,
		Environment:     st.Environment,
		Settings:        st.Settings,
		ActiveEvents:    st.ActiveEvents,
		ActiveNPCs:      st.ActiveNPCs,
		Requests:        []model.Request{},
		Calls:           []model.Call{},
		Messages:        []model.Message{},
		Proposals:       st.Proposals,
		News:            st.News,
	}

	me := st.User(viewerID)
	staff := me != nil && me.Role != model.RolePlayer
	if me != nil {
		u := *me
		out.Me = &u
		out.Unread = st.UnreadCount(viewerID)
	}

	for _, u := range st.Users {
		out.Players = append(out.Players, PlayerView{
			ID:         u.ID,
			Name:       u.Name,
			Role:       u.Role,
			Popularity: u.Popularity,
			Happiness:  u.Happiness,
			Rating:     u.Rating,
			Job:        u.Job,
		})
	}
	for _, r := range st.Requests {
		if staff || r.UserID == viewerID {
			out.Requests = append(out.Requests, r)
		}
	}
	for _, c := range st.Calls {
		if c.CallerID == viewerID || c.ReceiverID == viewerID {
			out.Calls = append(out.Calls, c)
		}
	}
	for _, m := range st.Messages {
		if m.From == viewerID || m.To == viewerID {
			out.Messages = append(out.Messages, m)
		}
	}
	return out
}

func stockViews(st *model.GameState, forbidden bool) []StockView {
	out := []StockView{}
	for _, s := range st.Stocks {
		if s.Forbidden == forbidden {
			out = append(out, stockView(s))
		}
	}
	return out
}

func stockView(s model.Stock) StockView {
	v := StockView{
		ID:            s.ID,
		Name:          s.Name,
		Price:         s.Price,
		PreviousPrice: s.PreviousPrice,
		Volatility:    s.Volatility,
		Forbidden:     s.Forbidden,
	}
	if s.PreviousPrice > 0 {
		v.ChangeBps = (s.Price - s.PreviousPrice) * 10_000 / s.PreviousPrice
	}
	return v
}
