package auth

import (
	"encoding/json"
	"net/http"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Subject     string `json:"subject"`
}

// RefreshToken issues a fresh token for the subject of the token that
// authenticated the request. Mount it behind RequireAdmin.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	subject := GetSubjectFromContext(r.Context())
	if subject == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	token, err := h.service.IssueToken(subject)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{AccessToken: token, Subject: subject})
}
