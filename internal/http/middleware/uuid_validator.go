package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/dto"
)

// UUIDValidator rejects the request unless the named path parameters are UUIDs.
// Usage: router.GET("/agreements/:id", UUIDValidator("id"), handler.Get)
func UUIDValidator(paramNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range paramNames {
			if _, err := uuid.Parse(c.Param(name)); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
					Detail: "invalid " + name,
					Errors: map[string][]string{name: {"Must be a valid UUID"}},
				})
				return
			}
		}
		c.Next()
	}
}
