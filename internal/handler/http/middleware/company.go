package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-sync/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/jwt"
)

// RequireCompany rejects tokens that are not bound to a tenant.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := jwt.CompanyID(r.Context()); err != nil {
			response.HandleError(w, jwt.ErrMissingCompany)
			return
		}
		next.ServeHTTP(w, r)
	})
}
