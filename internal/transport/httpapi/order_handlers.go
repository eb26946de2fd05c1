package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/swaplabs/sagashop/internal/domain"
	"github.com/swaplabs/sagashop/internal/service/order"
)

// OrderAPI — HTTP-обвязка order-сервиса.
type OrderAPI struct {
	service *order.Service
	logger  *log.Entry
}

// NewOrderAPI создаёт HTTP API заказов.
func NewOrderAPI(service *order.Service, logger *log.Entry) *OrderAPI {
	if logger == nil {
		logger = log.WithField("component", "order-api")
	}
	return &OrderAPI{service: service, logger: logger}
}

// RegisterRoutes вешает маршруты заказов на роутер.
func (api *OrderAPI) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/orders", RequireTenant())
	group.POST("", api.createOrder)
	group.GET("", api.listOrders)
	group.GET("/:id", api.getOrder)
	group.POST("/reset", api.reset)
}

type createOrderRequest struct {
	Items              []domain.OrderItem `json:"items"`
	PaymentBehaviour   domain.Behaviour   `json:"paymentBehaviour"`
	InventoryBehaviour domain.Behaviour   `json:"inventoryBehaviour"`
}

func (api *OrderAPI) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	created, err := api.service.CreateOrder(c.Request.Context(), tenantFrom(c), order.CreateOrderInput{
		Items:              req.Items,
		PaymentBehaviour:   req.PaymentBehaviour,
		InventoryBehaviour: req.InventoryBehaviour,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (api *OrderAPI) getOrder(c *gin.Context) {
	found, err := api.service.GetOrder(tenantFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (api *OrderAPI) listOrders(c *gin.Context) {
	orders, err := api.service.ListOrders(tenantFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (api *OrderAPI) reset(c *gin.Context) {
	if err := api.service.Reset(tenantFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
