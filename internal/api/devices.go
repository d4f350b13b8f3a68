package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-shark/internal/bridge"
)

// handleListDevices returns snapshots of every bound vacuum.
//
// GET /api/v1/devices
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.engine.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns the snapshot of one vacuum by serial.
//
// GET /api/v1/devices/{dsn}
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dsn := chi.URLParam(r, "dsn")
	for _, d := range s.engine.Devices() {
		if d.DSN == dsn {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}
	writeNotFound(w, "unknown device: "+dsn)
}

// commandRequest is the body of POST /devices/{dsn}/command.
type commandRequest struct {
	Action    string `json:"action"`
	PowerMode string `json:"power_mode,omitempty"`
}

// handleCommand executes one device action (clean, dock, pause, locate,
// power_mode) and reports the outcome synchronously.
//
// POST /api/v1/devices/{dsn}/command
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Action == "" {
		writeBadRequest(w, "action is required")
		return
	}

	s.executeCommand(w, r, bridge.Command{
		ID:        uuid.NewString(),
		DSN:       chi.URLParam(r, "dsn"),
		Action:    req.Action,
		PowerMode: req.PowerMode,
	})
}

// cleanRoomsRequest is the body of POST /devices/{dsn}/clean-rooms.
type cleanRoomsRequest struct {
	Rooms []string `json:"rooms"`
}

// handleCleanRooms starts a clean restricted to the named rooms.
//
// POST /api/v1/devices/{dsn}/clean-rooms
func (s *Server) handleCleanRooms(w http.ResponseWriter, r *http.Request) {
	var req cleanRoomsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if len(req.Rooms) == 0 {
		writeBadRequest(w, "rooms is required")
		return
	}

	s.executeCommand(w, r, bridge.Command{
		ID:     uuid.NewString(),
		DSN:    chi.URLParam(r, "dsn"),
		Action: bridge.ActionCleanRooms,
		Rooms:  req.Rooms,
	})
}

// executeCommand funnels a command into the engine and maps its outcome to
// an HTTP response.
func (s *Server) executeCommand(w http.ResponseWriter, r *http.Request, cmd bridge.Command) {
	err := s.engine.Do(r.Context(), cmd)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     cmd.ID,
			"status": "ok",
		})
	case errors.Is(err, bridge.ErrUnknownDevice):
		writeNotFound(w, err.Error())
	case errors.Is(err, bridge.ErrUnknownAction),
		errors.Is(err, bridge.ErrUnknownRoom),
		errors.Is(err, bridge.ErrNoRoomList):
		writeBadRequest(w, err.Error())
	case errors.Is(err, bridge.ErrCommandNotReady):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, bridge.ErrNotRunning):
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, err.Error())
	default:
		s.logger.Error("command failed", "dsn", cmd.DSN, "action", cmd.Action, "error", err)
		writeInternalError(w, err.Error())
	}
}

// credentialsRequest is the body of PUT /credentials.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleSetCredentials stores new cloud account credentials and triggers a
// fresh login.
//
// PUT /api/v1/credentials
func (s *Server) handleSetCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	err := s.engine.SetCredentials(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case errors.Is(err, bridge.ErrNoCredentials):
		writeBadRequest(w, "email and password are required")
	case errors.Is(err, bridge.ErrNotRunning):
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, err.Error())
	default:
		s.logger.Error("credential update failed", "error", err)
		writeInternalError(w, err.Error())
	}
}
