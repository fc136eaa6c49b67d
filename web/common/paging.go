package common

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"punchinout.com/punchinout/utils"
)

// Paging reads limit and offset from the query string.
func Paging(c *gin.Context) (limit, offset int) {
	if val, err := strconv.Atoi(c.Query("limit")); err == nil {
		limit = val
	}
	if val, err := strconv.Atoi(c.Query("offset")); err == nil {
		offset = val
	}
	return utils.Paging(limit, offset)
}
