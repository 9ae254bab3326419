package handler

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"github.com/techvaseegrah/gymsaas-sub001/internal/attendance"
	"github.com/techvaseegrah/gymsaas-sub001/internal/face"
	"github.com/techvaseegrah/gymsaas-sub001/internal/roster"
)

type apiError struct {
	status int
	code   string
}

func classify(err error) apiError {
	switch {
	case errors.Is(err, attendance.ErrFighterNotFound):
		return apiError{http.StatusNotFound, "FIGHTER_NOT_FOUND"}
	case errors.Is(err, attendance.ErrSubscriptionExpired):
		return apiError{http.StatusForbidden, "SUBSCRIPTION_EXPIRED"}
	case errors.Is(err, attendance.ErrTooSoon):
		return apiError{http.StatusBadRequest, "TOO_SOON"}
	case errors.Is(err, attendance.ErrConcurrentPunch):
		return apiError{http.StatusConflict, "CONCURRENT_PUNCH"}
	case errors.Is(err, attendance.ErrNoOpenCheckIn):
		return apiError{http.StatusConflict, "NO_OPEN_CHECKIN"}
	case errors.Is(err, attendance.ErrRFIDMismatch):
		return apiError{http.StatusForbidden, "RFID_MISMATCH"}
	case errors.Is(err, roster.ErrRFIDTaken):
		return apiError{http.StatusConflict, "RFID_TAKEN"}
	case errors.Is(err, attendance.ErrInvalidRange),
		errors.Is(err, roster.ErrInvalidRFID),
		errors.Is(err, roster.ErrInvalidEnrollment),
		errors.Is(err, roster.ErrDescriptorDimension),
		errors.Is(err, roster.ErrDescriptorValues),
		errors.Is(err, roster.ErrNameRequired),
		errors.Is(err, face.ErrDimension):
		return apiError{http.StatusBadRequest, "INVALID_REQUEST"}
	}
	return apiError{http.StatusInternalServerError, ""}
}

func writeError(c *gin.Context, err error) {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request", "code": "INVALID_REQUEST", "errors": verrs})
		return
	}

	e := classify(err)
	if e.status == http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("request_id", requestid.Get(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(e.status, gin.H{"msg": "internal server error"})
		return
	}
	c.JSON(e.status, gin.H{"msg": err.Error(), "code": e.code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"msg": msg, "code": "INVALID_REQUEST"})
}
