package httpapi

import (
	"errors"
	"net/http"

	"paperbroker/internal/broker"
	"paperbroker/internal/calendar"
	"paperbroker/internal/types"
)

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req types.OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	execution, err := s.broker.PlaceOrder(req)
	if err != nil {
		writeError(w, statusForOrderError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.broker.CancelOrder(id); err != nil {
		writeError(w, statusForOrderError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleListOpenOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.GetOpenOrders())
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	execution, err := s.broker.ClosePosition(symbol)
	if err != nil {
		writeError(w, statusForOrderError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

func (s *Server) handlePushMarketData(w http.ResponseWriter, r *http.Request) {
	var data types.MarketData
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.broker.UpdateMarketData(data)
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.GetPortfolio())
}

func (s *Server) handleGetEnhancedPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.GetMtMSnapshot())
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.GetTrades())
}

func (s *Server) handleGetRiskStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.GetRiskStatus())
}

func (s *Server) handleGetRiskViolations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.GetRiskViolations())
}

func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	if err := s.broker.SaveState(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleJournalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.broker.GetJournalStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleBackupJournal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Suffix string `json:"suffix"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.broker.BackupJournal(body.Suffix); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleSetAutoSave(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.broker.SetAutoSave(body.Enabled)
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.GetCurrentSession())
}

func (s *Server) handleIsMarketOpen(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"is_open": s.broker.IsMarketOpen()})
}

func (s *Server) handleNextSessionStart(w http.ResponseWriter, r *http.Request) {
	next, ok := s.broker.GetNextSessionStart()
	writeJSON(w, http.StatusOK, map[string]any{"next_session_start": next, "found": ok})
}

func (s *Server) handleConfigureExtendedHours(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Premarket  bool `json:"premarket"`
		Afterhours bool `json:"afterhours"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.broker.ConfigureExtendedHours(body.Premarket, body.Afterhours)
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleSetHolidayTrading(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Allow bool `json:"allow"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.broker.SetHolidayTrading(body.Allow)
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleAddHoliday(w http.ResponseWriter, r *http.Request) {
	var h calendar.MarketHoliday
	if err := decodeJSON(r, &h); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.broker.AddCustomHoliday(h); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// statusForOrderError maps the broker's sentinel errors to the External
// Interface Shim's HTTP status codes.
func statusForOrderError(err error) int {
	switch {
	case errors.Is(err, broker.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, broker.ErrUnknownOrder):
		return http.StatusNotFound
	case errors.Is(err, broker.ErrOrderComplete):
		return http.StatusConflict
	case errors.Is(err, broker.ErrRiskRejected):
		return http.StatusForbidden
	case errors.Is(err, broker.ErrInsufficientBuyingPower), errors.Is(err, broker.ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
