package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/routevox/routevox/internal/analytics"
	"github.com/routevox/routevox/internal/observe"
	"github.com/routevox/routevox/internal/route"
	"github.com/routevox/routevox/internal/session"
	"github.com/routevox/routevox/pkg/speech/wire"
)

// stopPayload is the JSON shape for route stops on the wire.
type stopPayload struct {
	ID           string  `json:"id,omitempty"`
	AddressLine1 string  `json:"address_line1"`
	AddressLine2 string  `json:"address_line2,omitempty"`
	City         string  `json:"city,omitempty"`
	State        string  `json:"state,omitempty"`
	Zip          string  `json:"zip,omitempty"`
	Lat          float64 `json:"lat,omitempty"`
	Lng          float64 `json:"lng,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	StopNumber   int     `json:"stop_number,omitempty"`
}

// packagePayload is the JSON shape for package records on the wire.
type packagePayload struct {
	ID                 string `json:"id"`
	Tracking           string `json:"tracking,omitempty"`
	Size               string `json:"size"`
	Notes              string `json:"notes,omitempty"`
	AssignedStopID     string `json:"assigned_stop_id,omitempty"`
	AssignedStopNumber int    `json:"assigned_stop_number,omitempty"`
	AssignedAddress    string `json:"assigned_address,omitempty"`
	Delivered          bool   `json:"delivered"`
}

// handleSessionWS upgrades the connection and runs one voice session over it
// until the device disconnects.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	bridge := wire.NewBridge(conn)

	id := uuid.NewString()
	var opts []analytics.Option
	if s.sink != nil {
		opts = append(opts, analytics.WithSink(s.sink))
	}
	log := analytics.NewLog(id, opts...)

	sess := session.New(session.Deps{
		ID:        id,
		Brain:     s.newBrain(),
		Stops:     s.stops,
		Packages:  s.packages,
		Input:     bridge,
		Output:    bridge,
		Tone:      bridge,
		Analytics: log,
		Metrics:   s.metrics,
		Tuning:    s.cfg.Session,
	})
	sess.Subscribe(func(st session.State) {
		f := wire.Frame{Type: wire.FrameState, Phase: string(st.Phase), Err: st.Err}
		if p := st.Prediction; p != nil && p.Stop != nil {
			f.Address = p.Stop.FullAddress()
			f.Confidence = p.Confidence
			if _, pos, err := s.stops.ByID(p.Stop.ID); err == nil {
				f.StopNumber = pos
			}
		}
		bridge.Send(f)
	})

	untrack := s.track(sess)
	defer untrack()

	logger := observe.SessionLogger(r.Context(), id)
	if err := sess.Boot(); err != nil {
		logger.Error("session boot failed", "error", err)
		bridge.Close()
		return
	}
	logger.Info("voice session started")

	err = bridge.Run(r.Context())
	summary := sess.End()
	logger.Info("voice session ended",
		"loaded", summary.Loaded,
		"failed", summary.Failed,
		"undo", summary.Undo,
		"mean_confidence", summary.MeanConfidence,
		"close", err,
	)
}

// handleListSessions reports the live sessions and their phases.
func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		ID    string `json:"id"`
		Phase string `json:"phase"`
	}
	s.mu.Lock()
	out := make([]entry, 0, len(s.sessions))
	for id, sess := range s.sessions {
		out = append(out, entry{ID: id, Phase: string(sess.Phase())})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// sessionAction adapts a no-result session method into a handler.
func (s *Server) sessionAction(fn func(*session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.lookup(r.PathValue("id"))
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		fn(sess)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err := sess.Resume(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err := sess.ManualConfirm(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChoose(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	var body struct {
		StopID string `json:"stop_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.StopID == "" {
		http.Error(w, "stop_id is required", http.StatusBadRequest)
		return
	}
	if err := sess.Choose(body.StopID); err != nil {
		status := http.StatusConflict
		if errors.Is(err, route.ErrStopNotFound) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	sum := sess.Summary()
	writeJSON(w, http.StatusOK, map[string]any{
		"loaded":          sum.Loaded,
		"failed":          sum.Failed,
		"undo":            sum.Undo,
		"matches":         sum.Matches,
		"mean_confidence": sum.MeanConfidence,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	type entry struct {
		Type       string  `json:"type"`
		Timestamp  string  `json:"timestamp"`
		Confidence float64 `json:"confidence,omitempty"`
		Details    string  `json:"details,omitempty"`
	}
	events := sess.Events()
	out := make([]entry, 0, len(events))
	for _, ev := range events {
		out = append(out, entry{
			Type:       string(ev.Type),
			Timestamp:  ev.Timestamp.UTC().Format(time.RFC3339Nano),
			Confidence: ev.Confidence,
			Details:    ev.Details,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetRoute returns the current ordered stop list.
func (s *Server) handleGetRoute(w http.ResponseWriter, _ *http.Request) {
	stops := s.stops.Stops()
	out := make([]stopPayload, 0, len(stops))
	for i, st := range stops {
		out = append(out, stopPayload{
			ID:           st.ID,
			AddressLine1: st.AddressLine1,
			AddressLine2: st.AddressLine2,
			City:         st.City,
			State:        st.State,
			Zip:          st.Zip,
			Lat:          st.Lat,
			Lng:          st.Lng,
			Notes:        st.Notes,
			StopNumber:   i + 1,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePutRoute replaces the whole stop list and rebuilds the brain of every
// live session. Stop order in the request body is the stop-number order.
func (s *Server) handlePutRoute(w http.ResponseWriter, r *http.Request) {
	var body []stopPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	stops := make([]route.Stop, 0, len(body))
	for _, p := range body {
		if p.AddressLine1 == "" {
			http.Error(w, "address_line1 is required", http.StatusBadRequest)
			return
		}
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		stops = append(stops, route.Stop{
			ID:           id,
			AddressLine1: p.AddressLine1,
			AddressLine2: p.AddressLine2,
			City:         p.City,
			State:        p.State,
			Zip:          p.Zip,
			Lat:          p.Lat,
			Lng:          p.Lng,
			Notes:        p.Notes,
		})
	}
	s.stops.Replace(stops)
	s.rebuildBrains()
	slog.Info("route replaced", "stops", len(stops))
	w.WriteHeader(http.StatusNoContent)
}

// handleListPackages returns every package record created so far.
func (s *Server) handleListPackages(w http.ResponseWriter, _ *http.Request) {
	pkgs := s.packages.All()
	out := make([]packagePayload, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, packagePayload{
			ID:                 p.ID,
			Tracking:           p.Tracking,
			Size:               string(p.Size),
			Notes:              p.Notes,
			AssignedStopID:     p.AssignedStopID,
			AssignedStopNumber: p.AssignedStopNumber,
			AssignedAddress:    p.AssignedAddress,
			Delivered:          p.Delivered,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// writeJSON encodes v with the given status. Falls back to a plain 500 when
// encoding fails.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}
