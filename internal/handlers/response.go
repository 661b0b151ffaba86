package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eioku/eioku-backend/internal/apperr"
)

func RespondOK(c *gin.Context, data gin.H) {
	c.JSON(http.StatusOK, data)
}

func RespondCreated(c *gin.Context, data gin.H) {
	c.JSON(http.StatusCreated, data)
}

func RespondError(c *gin.Context, status int, code string, err error) {
	body := gin.H{"error": code}
	if err != nil {
		body["detail"] = err.Error()
	}
	c.JSON(status, body)
}

// RespondAppError maps the error taxonomy onto HTTP statuses.
func RespondAppError(c *gin.Context, err error) {
	var validation *apperr.ValidationError
	var invalidParam *apperr.InvalidParameterError
	var videoNotFound *apperr.VideoNotFoundError

	switch {
	case errors.As(err, &invalidParam):
		RespondError(c, http.StatusBadRequest, "invalid_parameter", err)
	case errors.As(err, &validation):
		RespondError(c, http.StatusUnprocessableEntity, "validation_failed", err)
	case errors.As(err, &videoNotFound), errors.Is(err, apperr.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, apperr.ErrConflict):
		RespondError(c, http.StatusConflict, "conflict", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
