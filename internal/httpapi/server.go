package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/accessdeck/zonegate/internal/zonegate/occupancy"
	"github.com/accessdeck/zonegate/internal/zonegate/service"
	"github.com/accessdeck/zonegate/internal/zonegate/types"
)

type Dependencies struct {
	Logger           *zap.Logger
	Addr             string
	Engine           *service.AccessDecisionEngine
	HeartbeatService *service.HeartbeatService
	Occupancy        occupancy.Tracker
	Locations        *service.MemberLocationTracker
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	engine     *service.AccessDecisionEngine
	heartbeats *service.HeartbeatService
	occupancy  occupancy.Tracker
	locations  *service.MemberLocationTracker
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		engine:     d.Engine,
		heartbeats: d.HeartbeatService,
		occupancy:  d.Occupancy,
		locations:  d.Locations,
	}

	mux.HandleFunc("POST /v1/access_request", s.handleAccessRequest)
	mux.HandleFunc("POST /v1/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("GET /v1/zones/{zone_id}/occupancy", s.handleZoneOccupancy)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleAccessRequest(w http.ResponseWriter, r *http.Request) {
	var req types.AccessRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	decision, err := s.engine.Decide(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDeviceID):
			writeError(w, http.StatusBadRequest, "invalid_device_id", err.Error())
			return
		case errors.Is(err, service.ErrUnknownDevice):
			// Uncommissioned devices are blocked from the access flow.
			writeError(w, http.StatusForbidden, "unknown_device", "device is not commissioned")
			return
		default:
			s.logger.Error("access_request failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
	}

	writeJSON(w, http.StatusOK, types.AccessResponse{
		OK:         true,
		Granted:    decision.Granted,
		Reason:     decision.Reason,
		DeviceID:   req.DeviceID,
		LogEntryID: decision.LogEntryID,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req types.HeartbeatRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.heartbeats.Record(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDeviceID) {
			writeError(w, http.StatusBadRequest, "invalid_device_id", err.Error())
			return
		}
		s.logger.Error("heartbeat failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type zoneOccupancyResponse struct {
	ZoneID  string   `json:"zone_id"`
	Count   int      `json:"count"`
	Members []string `json:"members"`
}

func (s *Server) handleZoneOccupancy(w http.ResponseWriter, r *http.Request) {
	zoneID := r.PathValue("zone_id")
	if zoneID == "" {
		writeError(w, http.StatusBadRequest, "invalid_zone_id", "zone_id is required")
		return
	}

	count, err := s.occupancy.Count(r.Context(), zoneID)
	if err != nil {
		s.logger.Error("occupancy count failed", zap.String("zone_id", zoneID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	members, err := s.locations.MembersInZone(r.Context(), zoneID)
	if err != nil {
		s.logger.Error("members in zone failed", zap.String("zone_id", zoneID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	if members == nil {
		members = []string{}
	}

	writeJSON(w, http.StatusOK, zoneOccupancyResponse{
		ZoneID:  zoneID,
		Count:   count,
		Members: members,
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
