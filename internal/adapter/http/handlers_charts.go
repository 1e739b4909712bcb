package adapthttp

import (
	"net/http"
)

func (s *Server) handleChartsDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user := requireUser(w, r)
	if user == nil {
		return
	}
	days := intQuery(r, "days", 30)
	today := s.steps.Today()

	points, err := s.charts.GetDaily(r.Context(), user.ID, today, days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"days":  len(points),
		"goal":  s.charts.Goal(),
		"today": today,
		"items": points,
	})
}
