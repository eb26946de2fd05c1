package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TenantHeader — заголовок с идентификатором сессии (tenant-а). Каждая
// демо-сессия работает в своём изолированном срезе данных.
const TenantHeader = "X-Session-ID"

const tenantContextKey = "tenantID"

// RequireTenant отклоняет запросы без tenant-заголовка: без него невозможно
// ни прочитать, ни записать ни одной строки.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(TenantHeader)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: TenantHeader + " header is required"})
			return
		}
		c.Set(tenantContextKey, tenantID)
		c.Next()
	}
}

func tenantFrom(c *gin.Context) string {
	return c.GetString(tenantContextKey)
}
