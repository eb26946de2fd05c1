package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/swaplabs/sagashop/internal/domain"
)

// PaymentAPI — read-only HTTP-обвязка payment-сервиса: платежи создаются
// только событиями саги, руками их не создать.
type PaymentAPI struct {
	payments domain.PaymentRepository
	logger   *log.Entry
}

// NewPaymentAPI создаёт HTTP API платежей.
func NewPaymentAPI(payments domain.PaymentRepository, logger *log.Entry) *PaymentAPI {
	if logger == nil {
		logger = log.WithField("component", "payment-api")
	}
	return &PaymentAPI{payments: payments, logger: logger}
}

// RegisterRoutes вешает маршруты платежей на роутер.
func (api *PaymentAPI) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/payments", RequireTenant())
	group.GET("", api.listPayments)
	group.GET("/:orderId", api.getByOrder)
	group.POST("/reset", api.reset)
}

func (api *PaymentAPI) listPayments(c *gin.Context) {
	payments, err := api.payments.List(tenantFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (api *PaymentAPI) getByOrder(c *gin.Context) {
	payment, err := api.payments.GetByOrderID(tenantFrom(c), c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (api *PaymentAPI) reset(c *gin.Context) {
	if err := api.payments.Reset(tenantFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
