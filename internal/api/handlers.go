package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"kidsmoney/internal/action"
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	user := identityFrom(r)
	var since int64
	if v := strings.TrimSpace(r.URL.Query().Get("since")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}
	st, changed, err := s.game.StateSince(r.Context(), user.UserID, since)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !changed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("ETag", strconv.FormatInt(st.Revision, 10))
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStocksList(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.ListStocks(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stocks": out})
}

func (s *Server) handleStockDetail(w http.ResponseWriter, r *http.Request) {
	user := identityFrom(r)
	out, err := s.game.StockDetail(r.Context(), user.UserID, strings.ToUpper(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleForbiddenMarket(w http.ResponseWriter, r *http.Request) {
	user := identityFrom(r)
	out, err := s.game.ForbiddenMarket(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stocks": out})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	out, err := s.game.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	user := identityFrom(r)
	var in struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.game.Submit(r.Context(), action.Action{
		Kind:    action.KindSignup,
		ActorID: user.UserID,
		Name:    in.Name,
		Role:    string(user.Role),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleAction accepts any action envelope. The envelope is checked against
// the action schema before it is decoded; the actor is always the caller.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := s.decodeAction(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if a.Kind == action.KindSignup {
		writeError(w, http.StatusBadRequest, "use /v1/signup")
		return
	}
	s.submit(w, r, a)
}

func (s *Server) decodeAction(body []byte) (action.Action, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return action.Action{}, err
	}
	if err := s.actionSchema.Validate(raw); err != nil {
		return action.Action{}, err
	}
	var a action.Action
	if err := json.Unmarshal(body, &a); err != nil {
		return action.Action{}, err
	}
	return a, nil
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, a action.Action) {
	user := identityFrom(r)
	a.ActorID = user.UserID
	a.Key = idempotencyKey(r, a.Key)
	res, err := s.game.Submit(r.Context(), a)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTrade(buy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Quantity  int64 `json:"quantity"`
			Forbidden bool  `json:"forbidden"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		kind := action.KindSellStock
		if buy {
			kind = action.KindBuyStock
		}
		s.submit(w, r, action.Action{
			Kind:      kind,
			StockID:   chi.URLParam(r, "id"),
			Quantity:  in.Quantity,
			Forbidden: in.Forbidden,
		})
	}
}

func (s *Server) handleBuyLand(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, action.Action{Kind: action.KindBuyLand, LandID: chi.URLParam(r, "id")})
}

func (s *Server) handleLoan(take bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Amount int64 `json:"amount"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		kind := action.KindRepayLoan
		if take {
			kind = action.KindTakeLoan
		}
		s.submit(w, r, action.Action{Kind: kind, Amount: in.Amount})
	}
}

func (s *Server) handleAdminGrant(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Amount int64  `json:"amount"`
		Note   string `json:"note"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.submit(w, r, action.Action{Kind: action.KindAdminGrant, Amount: in.Amount, Body: in.Note})
}

func (s *Server) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	var in action.SettingsPatch
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.submit(w, r, action.Action{Kind: action.KindAdminSettings, Settings: &in})
}
