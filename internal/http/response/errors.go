package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/educhat-backend/internal/pkg/httpx"
	"github.com/yungbote/educhat-backend/internal/platform/apierr"
	pkgerrors "github.com/yungbote/educhat-backend/internal/pkg/errors"
)

// StatusFor maps service-layer errors onto HTTP statuses. Unrecognized
// errors read as 500 so upstream faults are never blamed on the caller.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, pkgerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pkgerrors.ErrConflict):
		return http.StatusConflict
	}
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Status > 0 {
		return ae.Status
	}
	var sc httpx.HTTPStatusCoder
	if errors.As(err, &sc) && sc.HTTPStatusCode() >= 400 {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func RespondServiceError(c *gin.Context, code string, err error) {
	RespondError(c, StatusFor(err), code, err)
}
