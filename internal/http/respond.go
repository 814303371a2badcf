package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/repository"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/service/auth"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/service/leaderboard"
	"github.com/saralaufeyson/leetcode-team-dashboard/internal/service/roster"
	"github.com/saralaufeyson/leetcode-team-dashboard/pkg/leetcode"
)

const maxBodyBytes = 1 << 20

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// statusForError maps service errors onto HTTP status codes.
func statusForError(err error) int {
	var upstream *leetcode.UpstreamError
	switch {
	case errors.Is(err, roster.ErrInvalidMember),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, leaderboard.ErrInvalidPolicy),
		errors.Is(err, repository.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, roster.ErrOwnerNotFound):
		return http.StatusInternalServerError
	case errors.Is(err, leetcode.ErrProfileNotFound),
		errors.Is(err, leaderboard.ErrMemberNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
		if errors.Is(err, roster.ErrOwnerNotFound) {
			writeError(w, status, "owner has no team")
			return
		}
		writeError(w, status, "internal error")
		return
	}
	if status == http.StatusBadGateway {
		writeError(w, status, "upstream profile service unavailable")
		return
	}
	writeError(w, status, err.Error())
}
