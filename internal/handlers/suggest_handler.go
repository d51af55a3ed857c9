package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/web-kovcheg/storefront/internal/logging"
)

func (h *handler) addressSuggest(c *gin.Context) {
	ctx := c.Request.Context()

	limit, _ := strconv.Atoi(c.Query("limit"))
	list, cached, err := h.suggester.Suggest(ctx, c.Query("q"), limit)
	if err != nil {
		e := classifySuggestError(err)
		if e.status >= http.StatusInternalServerError {
			logging.FromContext(ctx).Error("address suggest failed", zap.String("code", e.code), zap.Error(err))
		}
		writeError(c, e, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": list, "cached": cached})
}
