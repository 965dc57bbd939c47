// Package handlers implements the gin handlers of the HTTP API.
package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/impact"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeAppError maps err to the status of its code. Errors without a code
// and server-side failures are masked.
func writeAppError(c *gin.Context, err error) {
	_ = c.Error(err)

	code := errors.GetCode(err)
	status := errors.HTTPStatusOf(code)

	var ae *errors.AppError
	if code == errors.ErrCodeUnknown || !stderrors.As(err, &ae) || status >= http.StatusInternalServerError {
		if code == errors.ErrCodeUnknown {
			code = errors.ErrCodeInternal
		}
		c.AbortWithStatusJSON(status, ErrorResponse{Code: code.String(), Message: errors.DefaultMessage(code)})
		return
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code.String(), Message: ae.Message, Detail: ae.Detail})
}

// bindJSON decodes the body into v and writes the error response itself when
// that fails. Shape violations are reported with invalidCode.
func bindJSON(c *gin.Context, v interface{}, invalidCode errors.ErrorCode) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	var verrs validator.ValidationErrors
	switch {
	case stderrors.As(err, &tooLarge):
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Code:    errors.ErrCodeBadRequest.String(),
			Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		})
	case stderrors.As(err, &verrs):
		writeAppError(c, errors.New(invalidCode, "request failed validation").WithDetail(describeValidation(verrs)))
	default:
		writeAppError(c, errors.New(errors.ErrCodeBadRequest, "malformed JSON body").WithDetail(err.Error()))
	}
	return false
}

func describeValidation(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// MeasurementRequest is the wire form of one measurement. Unit matching is
// case-insensitive; unknown units are left for the engine to reject.
type MeasurementRequest struct {
	BehaviorID string     `json:"behavior_id" binding:"required"`
	Value      *float64   `json:"value" binding:"required"`
	Unit       string     `json:"unit" binding:"required"`
	Timestamp  *time.Time `json:"timestamp"`
}

func (r MeasurementRequest) toMeasurement() impact.Measurement {
	m := impact.Measurement{
		BehaviorID: strings.TrimSpace(r.BehaviorID),
		Unit:       impact.Unit(strings.ToLower(strings.TrimSpace(r.Unit))),
	}
	if r.Value != nil {
		m.Value = *r.Value
	}
	if r.Timestamp != nil {
		m.Timestamp = *r.Timestamp
	}
	return m
}
