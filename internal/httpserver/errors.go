package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"myconnectionsvr/account-service/internal/account"
)

const (
	msgUserExists         = "User already exists"
	msgEmailNotFound      = "Email is not found"
	msgInvalidCredentials = "Invalid credentials"
	msgUserNotFound       = "User not found"
	msgInvalidToken       = "Invalid token"
	msgInternal           = "Internal server error"
	msgInvalidBody        = "invalid request body"
	msgUnavailable        = "account service unavailable"

	msgCannotUpdateOther = "Cannot update another user's data"
	msgAdminGrantDenied  = "Only an admin can create admin accounts"
	msgAdminOnlyDelete   = "Access denied, only admin can delete"

	msgDeleted      = "User deleted successfully"
	msgResetSent    = "Password reset link has been sent to your email."
	msgResetApplied = "Password has been reset successfully."
)

// writeServiceError maps account errors to a status and a public message.
// forbidden is the message used for account.ErrForbidden on this route.
// Unexpected errors are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, forbidden string) {
	var verr *account.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, account.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, msgUserExists)
	case errors.Is(err, account.ErrEmailNotFound):
		writeError(w, http.StatusUnauthorized, msgEmailNotFound)
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, account.ErrForbidden):
		writeError(w, http.StatusForbidden, forbidden)
	case errors.Is(err, account.ErrNotFound):
		writeError(w, http.StatusNotFound, msgUserNotFound)
	case errors.Is(err, account.ErrInvalidResetToken):
		writeError(w, http.StatusBadRequest, msgInvalidToken)
	default:
		log.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
