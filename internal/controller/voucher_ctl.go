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

// VoucherController 运单 webhook
type VoucherController struct {
	ingest   *service.IngestService
	vouchers repository.VoucherRepository
	tracking *service.TrackingService
}

// NewVoucherController 创建运单控制器
func NewVoucherController(ingest *service.IngestService, vouchers repository.VoucherRepository) *VoucherController {
	return &VoucherController{ingest: ingest, vouchers: vouchers}
}

// SetTrackingService 设置物流跟踪服务（可选注入，未注入时刷新接口返回 503）
func (c *VoucherController) SetTrackingService(svc *service.TrackingService) {
	c.tracking = svc
}

// Create 写入运单
// POST /api/vouchers
func (c *VoucherController) Create(ctx *gin.Context) {
	var payload dto.VoucherPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		badRequest(ctx, err)
		return
	}

	result, err := c.ingest.IngestVoucher(ctx.Request.Context(), middleware.GetShop(ctx), &payload)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.IngestResp{
		Success:      true,
		VoucherID:    result.VoucherID,
		CustomerHash: result.CustomerHash,
	})
}

// Get 运单详情，含物流轨迹（仅限当前店铺）
// GET /api/vouchers/:id
func (c *VoucherController) Get(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "运单不存在"})
		return
	}

	voucher, err := c.vouchers.GetByIDForShop(ctx.Request.Context(), middleware.GetShopID(ctx), id)
	if err != nil {
		writeError(ctx, service.WrapStorage("运单不存在", err))
		return
	}
	ctx.JSON(http.StatusOK, toVoucherResp(voucher))
}

// Refresh 立即向物流商查询一次
// POST /api/vouchers/:id/refresh
func (c *VoucherController) Refresh(ctx *gin.Context) {
	if c.tracking == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable", "message": "物流跟踪未启用"})
		return
	}
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "运单不存在"})
		return
	}

	result, err := c.tracking.RefreshVoucherForShop(ctx.Request.Context(), middleware.GetShop(ctx), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":       true,
		"voucher_id":    result.VoucherID,
		"customer_hash": result.CustomerHash,
		"new_events":    result.NewEvents,
	})
}
