// Package handler translates HTTP requests into service calls and service
// results into JSON envelopes. Handlers hold no business rules.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/zamanix/dailycoins/internal/service"
)

// AccountService is the part of service.AccountService the handler needs.
type AccountService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
}

// AccountHandler serves registration and login.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users/register
// Body: {"name","email","password","phone"}
// 201 with the new account (5 coins, streak 1) and a bearer token.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		h.logger.Warn("registration failed",
			slog.String("email", in.Email),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, res.Message, toUserData(res.User, res.Token))
}

// HandleLogin verifies credentials and applies the daily reward.
//
// HTTP: POST /api/users/login
// Body: {"email","password"}
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), in)
	if err != nil {
		h.logger.Warn("login failed",
			slog.String("email", in.Email),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, res.Message, toUserData(res.User, res.Token))
}
