package api

import (
	"encoding/json"
	"net/http"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

// PullRequest is the JSON body for POST /v1/sync/pull.
type PullRequest struct {
	LastPulledAt  int64 `json:"last_pulled_at"`
	SchemaVersion int   `json:"schema_version"`
}

// PullResponse is the JSON response for a pull request.
type PullResponse struct {
	Changes   models.ChangeSet `json:"changes"`
	Timestamp int64            `json:"timestamp"`
}

// PushRequest is the JSON body for POST /v1/sync/push.
type PushRequest struct {
	Changes      models.ChangeSet `json:"changes"`
	LastPulledAt int64            `json:"last_pulled_at"`
}

// PushResponse partitions the pushed records per-item.
type PushResponse struct {
	Accepted  []AcceptedItem `json:"accepted,omitempty"`
	Rejected  []RejectedItem `json:"rejected,omitempty"`
	Conflicts []ConflictItem `json:"conflicts,omitempty"`
}

// AcceptedItem confirms one record.
type AcceptedItem struct {
	Collection models.Collection `json:"collection"`
	LocalID    string            `json:"local_id"`
	ServerID   string            `json:"server_id"`
}

// RejectedItem explains one refusal.
type RejectedItem struct {
	Collection models.Collection `json:"collection"`
	LocalID    string            `json:"local_id"`
	Reason     string            `json:"reason"`
	Code       string            `json:"code,omitempty"`
}

// ConflictItem reports one two-sided divergence.
type ConflictItem struct {
	Collection          models.Collection `json:"collection"`
	LocalID             string            `json:"local_id"`
	ServerID            string            `json:"server_id,omitempty"`
	LocalData           json.RawMessage   `json:"local_data"`
	ServerData          json.RawMessage   `json:"server_data"`
	SuggestedResolution string            `json:"suggested_resolution,omitempty"`
}

// StatusResponse is the JSON response for GET /v1/sync/status.
type StatusResponse struct {
	RecordCount int64 `json:"record_count"`
	LastUpdated int64 `json:"last_updated,omitempty"`
}

// handlePull handles POST /v1/sync/pull.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	var req PullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}
	if req.LastPulledAt < 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "last_pulled_at must be non-negative")
		return
	}

	changes, ts, err := s.store.ChangesSince(req.LastPulledAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PullResponse{Changes: changes, Timestamp: ts})
}

// handlePush handles POST /v1/sync/push.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}

	outcome, err := s.store.ApplyPush(req.Changes, req.LastPulledAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	resp := PushResponse{}
	for _, a := range outcome.Accepted {
		resp.Accepted = append(resp.Accepted, AcceptedItem(a))
	}
	for _, rej := range outcome.Rejected {
		resp.Rejected = append(resp.Rejected, RejectedItem(rej))
	}
	for _, c := range outcome.Conflicts {
		resp.Conflicts = append(resp.Conflicts, ConflictItem{
			Collection: c.Collection, LocalID: c.LocalID, ServerID: c.ServerID,
			LocalData: c.LocalData, ServerData: c.ServerData,
			SuggestedResolution: "server_wins",
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatus handles GET /v1/sync/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{RecordCount: stats.RecordCount, LastUpdated: stats.LastUpdated})
}

// resourceBody is the payload of a replayed offline write.
type resourceBody struct {
	LocalID string          `json:"local_id"`
	Data    json.RawMessage `json:"data"`
}

// handleResourceWrite handles replayed create/update operations. Application
// is idempotent, keyed by the client-generated local_id.
func (s *Server) handleResourceWrite(w http.ResponseWriter, r *http.Request) {
	coll := models.Collection(r.PathValue("collection"))
	if !models.KnownCollection(coll) {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "unknown collection")
		return
	}

	var body resourceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}
	if body.LocalID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "local_id is required")
		return
	}
	if !json.Valid(body.Data) || len(body.Data) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "malformed data payload")
		return
	}

	serverID, err := s.store.UpsertResource(coll, body.LocalID, body.Data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, AcceptedItem{Collection: coll, LocalID: body.LocalID, ServerID: serverID})
}

// handleResourceDelete handles replayed delete operations.
func (s *Server) handleResourceDelete(w http.ResponseWriter, r *http.Request) {
	coll := models.Collection(r.PathValue("collection"))
	if !models.KnownCollection(coll) {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "unknown collection")
		return
	}
	if err := s.store.DeleteResource(coll, r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleResourceRead serves a single record by server or local id.
func (s *Server) handleResourceRead(w http.ResponseWriter, r *http.Request) {
	coll := models.Collection(r.PathValue("collection"))
	rec, err := s.store.GetResource(coll, r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeBadRequest, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
