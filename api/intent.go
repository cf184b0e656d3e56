package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"singlish-bot/model"
	"singlish-bot/service"
)

type listIntentsResponse struct {
	Data  []model.Intent `json:"data"`
	Total int            `json:"total"`
}

func ListIntentsHandler(catalog *service.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		includeInactive := false
		if raw := c.Query("include_inactive"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(c, &model.ValidationError{Field: "include_inactive", Message: "must be true or false"})
				return
			}
			includeInactive = v
		}

		intents, err := catalog.List(c.Request.Context(), includeInactive)
		if err != nil {
			writeError(c, err)
			return
		}
		if intents == nil {
			intents = []model.Intent{}
		}
		c.JSON(http.StatusOK, listIntentsResponse{Data: intents, Total: len(intents)})
	}
}

func GetIntentHandler(catalog *service.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		intent, err := catalog.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, intent)
	}
}

func CreateIntentHandler(catalog *service.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in model.IntentInput
		if err := c.ShouldBindJSON(&in); err != nil {
			badBody(c, err)
			return
		}

		intent, err := catalog.Create(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, intent)
	}
}

func UpdateIntentHandler(catalog *service.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in model.IntentInput
		if err := c.ShouldBindJSON(&in); err != nil {
			badBody(c, err)
			return
		}

		intent, err := catalog.Update(c.Request.Context(), c.Param("id"), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, intent)
	}
}

func DeleteIntentHandler(catalog *service.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := catalog.SoftDelete(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
