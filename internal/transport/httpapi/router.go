package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/health"
)

// ErrorResponse — тело ошибки HTTP API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewRouter собирает базовый gin-роутер: recovery, permissive CORS и
// health-эндпоинты. Доменные маршруты регистрируют Register*Routes.
func NewRouter(healthHandler *health.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", TenantHeader},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/healthz", gin.WrapH(healthHandler))
	router.GET("/livez", gin.WrapF(health.LivenessHandler))
	router.GET("/readyz", gin.WrapF(healthHandler.ReadinessHandler))

	return router
}

// respondError переводит доменную ошибку в HTTP статус: not-found — 404,
// ошибки валидации — 400, остальное — 500.
func respondError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case isValidationError(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		domain.ErrTenantRequired,
		domain.ErrItemsRequired,
		domain.ErrItemProductRequired,
		domain.ErrItemQtyInvalid,
		domain.ErrBehaviourInvalid,
		domain.ErrOrderIDRequired,
		domain.ErrProductIDRequired,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
