package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/internal/service"
)

type SessionController struct {
	sessions service.SessionInteractor
}

func NewSessionController(sessions service.SessionInteractor) *SessionController {
	return &SessionController{sessions: sessions}
}

// Resolve turns the invite query of the page into a session. A missing or
// malformed invite yields a new host session with its invite link.
func (c *SessionController) Resolve(ctx *gin.Context) {
	params := domain.ParseInviteQuery(ctx.Request.URL.RawQuery)

	res, err := c.sessions.Resolve(ctx.Request.Context(), params)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}
