package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/internal/repository"
	"github.com/immxrtalbeast/codetutor/internal/service"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrRoomNotFound), errors.Is(err, service.ErrPeerNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRoomExpired):
		return http.StatusGone
	case errors.Is(err, service.ErrSessionMismatch), errors.Is(err, service.ErrHostKeyRequired):
		return http.StatusForbidden
	case errors.Is(err, service.ErrRoomCodeTaken):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidRoomParams),
		errors.Is(err, service.ErrInvalidParticipant),
		errors.Is(err, domain.ErrUnknownPanel):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx *gin.Context, err error) {
	ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
}
