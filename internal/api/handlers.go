package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/relay-gateway/internal/automation"
	"github.com/nerrad567/relay-gateway/internal/dispatch"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Worker        string `json:"worker"`
	QueueDepth    int    `json:"queue_depth"`
	Source        string `json:"source,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Version       string `json:"version,omitempty"`
	MQTTConnected *bool  `json:"mqtt_connected,omitempty"`
	WSClients     int    `json:"websocket_clients"`
}

// submit sends cmd to the worker and writes the error response itself when
// the command could not be answered or failed. ok is false in that case.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, cmd dispatch.Command) (dispatch.Response, bool) {
	cmd.ID = requestID(r.Context())
	resp, err := s.dispatcher.Submit(r.Context(), cmd)
	if err != nil {
		writeDispatchError(w, err)
		return resp, false
	}
	if err := resp.Err(); err != nil {
		writeDispatchError(w, err)
		return resp, false
	}
	return resp, true
}

// pathParam returns the unescaped URL parameter.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"HealthCheck": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.dispatcher.State()
	body := HealthResponse{
		Status:        "ok",
		Worker:        state.String(),
		QueueDepth:    s.dispatcher.QueueDepth(),
		Source:        s.source,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Version:       s.version,
		WSClients:     s.hub.ClientCount(),
	}
	if s.mqtt != nil {
		connected := s.mqtt.IsConnected()
		body.MQTTConnected = &connected
	}

	status := http.StatusOK
	if state == dispatch.StateStopped {
		body.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.submit(w, r, dispatch.SystemStatus())
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp.Value)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.submit(w, r, dispatch.Refresh())
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"refresh": resp.Bool})
}

func (s *Server) handlePresetSet(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.submit(w, r, dispatch.PresetSet(pathParam(r, "name")))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp.Value)
}

func (s *Server) handlePresetNames(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.submit(w, r, dispatch.PresetListNames())
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp.Value)
}

// handleRelay answers a bare boolean for status queries and unknown relays,
// and the relay snapshot after a state change.
func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	action, err := automation.ParseAction(chi.URLParam(r, "cmd"))
	if err != nil {
		writeNotAcceptable(w, err.Error())
		return
	}

	resp, ok := s.submit(w, r, dispatch.RelayCommand(pathParam(r, "name"), action))
	if !ok {
		return
	}
	if resp.Kind == dispatch.ResponseBool {
		writeJSON(w, http.StatusOK, resp.Bool)
		return
	}
	writeJSON(w, http.StatusOK, resp.Value)
}

func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	action, err := automation.ParseAction(chi.URLParam(r, "cmd"))
	if err != nil {
		writeNotAcceptable(w, err.Error())
		return
	}

	resp, ok := s.submit(w, r, dispatch.TagCommand(pathParam(r, "tag"), action))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp.Value)
}
