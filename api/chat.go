package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"singlish-bot/model"
	"singlish-bot/service"
)

func ChatHandler(chatSvc *service.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badBody(c, err)
			return
		}

		resp, err := chatSvc.HandleMessage(c.Request.Context(), OwnerID(c), req, nil)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}
