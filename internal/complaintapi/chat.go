package complaintapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/linnemanlabs/railtriage/internal/chat"
)

// chatRequest is one rider message.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// chatResponse reports the structured reading of the message and, when the
// message was a complaint, the triage acknowledgment for the record it became.
type chatResponse struct {
	Intent    chat.Intent     `json:"intent"`
	Entities  chat.Entities   `json:"entities"`
	Complaint *submitResponse `json:"complaint,omitempty"`
}

// handleChatMessage turns a chat message into a candidate complaint. Messages
// with complaint or emergency intent are submitted through the same triage
// path as the form endpoint; everything else just returns the analysis.
func (a *API) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message cannot be empty"})
		return
	}

	analysis := chat.Analyze(req.Message)
	resp := chatResponse{Intent: analysis.Intent, Entities: analysis.Entities}

	in, ok := analysis.ToComplaint(req.Message, time.Now())
	if !ok {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	rec, err := a.svc.Submit(r.Context(), in)
	if err != nil {
		a.writeFatal(w, r, err)
		return
	}

	ack := toSubmitResponse(rec)
	resp.Complaint = &ack
	writeJSON(w, http.StatusCreated, resp)
}
