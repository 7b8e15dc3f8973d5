package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/khetumewada/WebChat/internal/content"
	"github.com/khetumewada/WebChat/internal/models"
)

type UserAdder interface {
	AddUser(user models.User) (models.User, error)
}

type AdminHandler struct {
	users  UserAdder
	logger *slog.Logger
}

func NewAdminHandler(users UserAdder, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{users: users, logger: logger}
}

type AddUserRequest struct {
	Username     string `json:"username"`
	FullName     string `json:"full_name,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

type AddUserResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message,omitempty"`
	ID       models.UserID `json:"id,omitempty"`
	Username string        `json:"username,omitempty"`
}

func (h *AdminHandler) AddUserHandler(w http.ResponseWriter, r *http.Request) {
	var req AddUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if err := content.ValidateUsername(req.Username); err != nil {
		h.reply(w, http.StatusBadRequest, AddUserResponse{Message: err.Error()})
		return
	}

	user, err := h.users.AddUser(models.User{
		UserName:     req.Username,
		FullName:     strings.TrimSpace(req.FullName),
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrAlreadyExists) {
			status = http.StatusConflict
		}
		h.reply(w, status, AddUserResponse{Message: fmt.Sprintf("Failed to create user: %v", err)})
		return
	}

	h.logger.Info("user created", "user_id", user.ID, "username", user.UserName)
	h.reply(w, http.StatusOK, AddUserResponse{
		Success:  true,
		ID:       user.ID,
		Username: user.UserName,
	})
}

func (h *AdminHandler) reply(w http.ResponseWriter, status int, resp AddUserResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
