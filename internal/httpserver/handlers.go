package httpserver

import (
	"encoding/json"
	"net/http"

	"myconnectionsvr/account-service/internal/account"
	"myconnectionsvr/account-service/internal/auth"
)

const maxBodyBytes = 1 << 20

type tokenResponse struct {
	Token string `json:"token"`
}

func registerAccountHandlers(mux *http.ServeMux, deps Deps) {
	protect := func(h http.Handler) http.Handler {
		if deps.Auth == nil || deps.Accounts == nil {
			return http.HandlerFunc(unavailable)
		}
		return deps.Auth.Authenticate(h)
	}

	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		if deps.Accounts == nil {
			unavailable(w, r)
			return
		}
		var req account.RegisterInput
		if !decodeBody(w, r, &req) {
			return
		}

		// A valid admin session may grant the admin role; otherwise the
		// request is anonymous.
		var actor *auth.Identity
		if deps.Auth != nil {
			if id, err := deps.Auth.Identify(r); err == nil {
				actor = &id
			}
		}

		session, err := deps.Accounts.Register(r.Context(), req, actor)
		if err != nil {
			writeServiceError(w, r, deps.Logger, err, msgAdminGrantDenied)
			return
		}
		writeJSON(w, http.StatusCreated, tokenResponse{Token: session.Token})
	})

	mux.Handle("GET /users", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accounts, err := deps.Accounts.List(r.Context(), r.URL.Query().Get("role"))
		if err != nil {
			writeServiceError(w, r, deps.Logger, err, "")
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	})))

	mux.Handle("GET /users/me", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		a, err := deps.Accounts.Me(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, deps.Logger, err, "")
			return
		}
		writeJSON(w, http.StatusOK, a)
	})))

	mux.Handle("PUT /users/{id}", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req account.ProfileUpdate
		if !decodeBody(w, r, &req) {
			return
		}
		id, _ := auth.IdentityFromContext(r.Context())
		a, err := deps.Accounts.Update(r.Context(), id, r.PathValue("id"), req)
		if err != nil {
			writeServiceError(w, r, deps.Logger, err, msgCannotUpdateOther)
			return
		}
		writeJSON(w, http.StatusOK, a)
	})))

	adminOnly := auth.RequireRole(string(account.RoleAdmin), msgAdminOnlyDelete)
	mux.Handle("DELETE /users/{id}", protect(adminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Accounts.Delete(r.Context(), r.PathValue("id")); err != nil {
			writeServiceError(w, r, deps.Logger, err, msgAdminOnlyDelete)
			return
		}
		writeMessage(w, msgDeleted)
	}))))
}

func registerCredentialHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		if deps.Accounts == nil {
			unavailable(w, r)
			return
		}
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		session, err := deps.Accounts.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeServiceError(w, r, deps.Logger, err, "")
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{Token: session.Token})
	})

	mux.HandleFunc("POST /request-password-reset", func(w http.ResponseWriter, r *http.Request) {
		if deps.Accounts == nil {
			unavailable(w, r)
			return
		}
		var req struct {
			Email string `json:"email"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := deps.Accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
			writeServiceError(w, r, deps.Logger, err, "")
			return
		}
		writeMessage(w, msgResetSent)
	})

	mux.HandleFunc("POST /reset-password", func(w http.ResponseWriter, r *http.Request) {
		if deps.Accounts == nil {
			unavailable(w, r)
			return
		}
		var req struct {
			NewPassword string `json:"newPassword"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := deps.Accounts.ResetPassword(r.Context(), r.URL.Query().Get("token"), req.NewPassword); err != nil {
			writeServiceError(w, r, deps.Logger, err, "")
			return
		}
		writeMessage(w, msgResetApplied)
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}

func unavailable(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusServiceUnavailable, msgUnavailable)
}
