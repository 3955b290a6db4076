package controller

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"riskhub_v1_202610/internal/service"
)

// CustomerController 跨店铺风险查询
type CustomerController struct {
	stats *service.StatsService
}

// NewCustomerController 创建客户控制器
func NewCustomerController(stats *service.StatsService) *CustomerController {
	return &CustomerController{stats: stats}
}

// GetStats 查询客户风险统计
// GET /api/customers/:hash/stats
func (c *CustomerController) GetStats(ctx *gin.Context) {
	hash := strings.ToLower(strings.TrimSpace(ctx.Param("hash")))

	stat, err := c.stats.GetStat(ctx.Request.Context(), hash)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toStatResp(stat))
}
