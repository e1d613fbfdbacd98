package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/monitoring"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Param names the offending scenario parameter when known.
	Param string `json:"param,omitempty"`
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: msg}})
}

// abortErr maps planning errors onto HTTP statuses.
func abortErr(c *gin.Context, err error) {
	var (
		ve  *model.ValidationError
		ds  *model.DataShapeError
		inf *model.InfeasibleModelError
		unb *model.UnboundedModelError
		to  *model.SolverTimeoutError
		mbe *http.MaxBytesError
	)
	d := ErrorDetail{Message: err.Error()}
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status, d.Code, d.Param = http.StatusBadRequest, "INVALID_SCENARIO", ve.Param
	case errors.As(err, &ds):
		status, d.Code, d.Param = http.StatusUnprocessableEntity, "DATA_SHAPE", ds.Param
	case errors.As(err, &inf):
		status, d.Code, d.Param = http.StatusUnprocessableEntity, "INFEASIBLE", inf.Param
	case errors.As(err, &unb):
		status, d.Code, d.Param = http.StatusUnprocessableEntity, "UNBOUNDED", unb.Param
	case errors.As(err, &to):
		status, d.Code, d.Param = http.StatusGatewayTimeout, "SOLVER_TIMEOUT", to.Param
	case errors.As(err, &mbe):
		status, d.Code = http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, d.Code = http.StatusServiceUnavailable, "CANCELED"
	default:
		d.Code = "INTERNAL_ERROR"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: d})
}

// Recovery turns panics into INTERNAL_ERROR responses.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		msg := "An unexpected error occurred"
		if s, ok := recovered.(string); ok {
			msg = s
		} else if err, ok := recovered.(error); ok {
			msg = err.Error()
		}
		monitoring.CaptureException(fmt.Errorf("panic: %v", recovered), map[string]string{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		})
		abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", msg)
	})
}
