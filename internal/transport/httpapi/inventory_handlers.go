package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/swaplabs/sagashop/internal/domain"
)

// InventoryAPI — HTTP-обвязка inventory-сервиса: каталог, сидирование,
// диагностическая проверка доступности и агрегаты.
type InventoryAPI struct {
	inventory domain.InventoryRepository
	logger    *log.Entry
}

// NewInventoryAPI создаёт HTTP API склада.
func NewInventoryAPI(inventory domain.InventoryRepository, logger *log.Entry) *InventoryAPI {
	if logger == nil {
		logger = log.WithField("component", "inventory-api")
	}
	return &InventoryAPI{inventory: inventory, logger: logger}
}

// RegisterRoutes вешает маршруты склада на роутер.
func (api *InventoryAPI) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/inventory", RequireTenant())
	group.GET("/products", api.listProducts)
	group.POST("/seed", api.seed)
	group.POST("/check", api.checkAvailability)
	group.GET("/stats", api.stats)
	group.POST("/reset", api.reset)
}

func (api *InventoryAPI) listProducts(c *gin.Context) {
	products, err := api.inventory.ListProducts(tenantFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// seed сидирует демо-каталог tenant-а. Повторный вызов обновляет сток до
// исходных значений, не меняя идентификаторы.
func (api *InventoryAPI) seed(c *gin.Context) {
	tenantID := tenantFrom(c)
	if err := api.inventory.SeedProducts(tenantID, domain.SeedCatalog(tenantID)); err != nil {
		respondError(c, err)
		return
	}

	products, err := api.inventory.ListProducts(tenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

type checkAvailabilityRequest struct {
	Items []domain.OrderItem `json:"items"`
}

func (api *InventoryAPI) checkAvailability(c *gin.Context) {
	var req checkAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := api.inventory.CheckAvailability(tenantFrom(c), req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (api *InventoryAPI) stats(c *gin.Context) {
	stats, err := api.inventory.Stats(tenantFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (api *InventoryAPI) reset(c *gin.Context) {
	if err := api.inventory.Reset(tenantFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
