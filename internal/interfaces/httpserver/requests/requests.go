// Package requests contains HTTP request DTOs for the messaging-api.
// Resource-specific request types live in the subpackages.
package requests

import (
	"github.com/gin-gonic/gin"

	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// PageQuery is the page-number pagination accepted by list endpoints.
// Zero values fall back to the per-resource defaults.
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1"`
}

// BindPageQuery reads page and page_size from the query string.
func BindPageQuery(c *gin.Context) (PageQuery, error) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return PageQuery{}, platformerrors.NewError(c.Request.Context(), platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
			"page and page_size must be positive integers", err, "pagination-invalid")
	}
	return q, nil
}
