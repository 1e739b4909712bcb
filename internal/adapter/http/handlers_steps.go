package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"stepcounter/internal/app"
	"stepcounter/internal/domain"
	"stepcounter/internal/logfields"
)

// streamKeepAlive is how often an idle event stream sends a comment line.
var streamKeepAlive = 25 * time.Second

func (s *Server) handleStepsReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user := requireUser(w, r)
	if user == nil {
		return
	}
	var body struct {
		RawValue *int64 `json:"rawValue"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.RawValue == nil {
		writeError(w, http.StatusBadRequest, errors.New("rawValue is required"))
		return
	}

	u, err := s.steps.RecordReading(r.Context(), user.ID, *body.RawValue)
	if errors.Is(err, app.ErrInvalidReading) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": u.Day, "stepsToday": u.StepsToday})
}

func (s *Server) handleStepsToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user := requireUser(w, r)
	if user == nil {
		return
	}
	st := s.steps.Current(r.Context(), user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"today":      st.Day,
		"stepsToday": st.StepsToday,
		"display":    domain.FormatSteps(st.StepsToday),
	})
}

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user := requireUser(w, r)
	if user == nil {
		return
	}
	st := s.steps.Current(r.Context(), user.ID)
	writeJSON(w, http.StatusOK, domain.NewWidget(st.Day, st.StepsToday, s.charts.Goal()))
}

// handleStepsStream pushes the step count as server-sent events: the current
// count on connect, then one event per accepted reading.
func (s *Server) handleStepsStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user := requireUser(w, r)
	if user == nil {
		return
	}
	rc := http.NewResponseController(w)

	updates, cancel := s.steps.Subscribe(user.ID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	st := s.steps.Current(r.Context(), user.ID)
	initial := domain.StepUpdate{UserID: user.ID, Day: st.Day, StepsToday: st.StepsToday, At: time.Now()}
	if err := writeEvent(w, rc, initial); err != nil {
		return
	}

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, rc, u); err != nil {
				s.logger.Debug("Step stream closed", logfields.UserID(user.ID), logfields.Error(err))
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, u domain.StepUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: steps\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
