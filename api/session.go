package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"singlish-bot/model"
	"singlish-bot/service"
)

func ListSessionsHandler(sessions *service.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := sessions.ListSessions(c.Request.Context(), OwnerID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		if list == nil {
			list = []model.Session{}
		}
		c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list)})
	}
}

func SessionMessagesHandler(sessions *service.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := sessions.History(c.Request.Context(), c.Param("id"), OwnerID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		if msgs == nil {
			msgs = []model.Message{}
		}
		c.JSON(http.StatusOK, gin.H{"data": msgs, "total": len(msgs)})
	}
}

func DeleteSessionHandler(sessions *service.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sessions.DeleteSession(c.Request.Context(), c.Param("id"), OwnerID(c)); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
