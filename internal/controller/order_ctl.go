package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"riskhub_v1_202610/internal/api/dto"
	"riskhub_v1_202610/internal/middleware"
	"riskhub_v1_202610/internal/repository"
	"riskhub_v1_202610/internal/service"
)

// OrderController 订单 webhook
type OrderController struct {
	ingest *service.IngestService
	orders repository.OrderRepository
}

// NewOrderController 创建订单控制器
func NewOrderController(ingest *service.IngestService, orders repository.OrderRepository) *OrderController {
	return &OrderController{ingest: ingest, orders: orders}
}

// Create 写入订单
// POST /api/orders
func (c *OrderController) Create(ctx *gin.Context) {
	var payload dto.OrderPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		badRequest(ctx, err)
		return
	}

	result, err := c.ingest.IngestOrder(ctx.Request.Context(), middleware.GetShop(ctx), &payload)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.IngestResp{
		Success:      true,
		OrderID:      result.OrderID,
		CustomerHash: result.CustomerHash,
	})
}

// Get 订单详情（仅限当前店铺）
// GET /api/orders/:id
func (c *OrderController) Get(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "订单不存在"})
		return
	}

	order, err := c.orders.GetByIDForShop(ctx.Request.Context(), middleware.GetShopID(ctx), id)
	if err != nil {
		writeError(ctx, service.WrapStorage("订单不存在", err))
		return
	}
	ctx.JSON(http.StatusOK, toOrderResp(order))
}
