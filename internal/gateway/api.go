// ABOUTME: JSON API handlers for register, chat, history, and health
// ABOUTME: Maps relay error kinds onto HTTP status codes

package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/parleyhq/parley/internal/relay"
	"github.com/parleyhq/parley/internal/store"
)

// routes builds the HTTP mux with request-id and logging middleware applied.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register-user", g.handleRegisterUser)
	mux.HandleFunc("POST /chat", g.handleChat)
	mux.HandleFunc("POST /get-messages", g.handleGetMessages)
	mux.HandleFunc("GET /health", g.handleHealth)

	return g.withRequestID(g.withLogging(mux))
}

type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type registerResponse struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

func (g *Gateway) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := g.registrar.Register(r.Context(), req.Name, req.Email)
	if err != nil {
		g.sendRelayError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, registerResponse{
		UserID:    user.ID,
		Name:      user.DisplayName,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	})
}

type chatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reply, err := g.relayer.Relay(r.Context(), req.UserID, req.Message)
	if err != nil {
		g.sendRelayError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

type getMessagesRequest struct {
	UserID string `json:"userId"`
}

type exchangeJSON struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	Reply     string `json:"reply"`
	CreatedAt string `json:"createdAt"`
}

type getMessagesResponse struct {
	Messages []exchangeJSON `json:"messages"`
}

func (g *Gateway) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	var req getMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	history, err := g.relayer.GetHistory(r.Context(), req.UserID)
	if err != nil {
		g.sendRelayError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, getMessagesResponse{Messages: toExchangeJSON(history)})
}

func toExchangeJSON(history []*store.Exchange) []exchangeJSON {
	out := make([]exchangeJSON, 0, len(history))
	for _, ex := range history {
		out = append(out, exchangeJSON{
			ID:        ex.ID,
			Message:   ex.Message,
			Reply:     ex.Reply,
			CreatedAt: ex.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sendRelayError maps the error taxonomy onto HTTP statuses: validation 400,
// not-found 404, everything else 500.
func (g *Gateway) sendRelayError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch relay.KindOf(err) {
	case relay.KindValidation:
		status = http.StatusBadRequest
	case relay.KindNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		g.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"error", err)
	}

	sendJSONError(w, status, err.Error())
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func sendJSONError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, map[string]string{"error": message})
}
