package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"groundedchat/internal/transport/http/middleware"
)

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	return middleware.UserID(c)
}

// parseIDParam reads a positive path id.
func parseIDParam(c *gin.Context, key string) (uint, bool) {
	u, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil || u == 0 {
		return 0, false
	}
	return uint(u), true
}
