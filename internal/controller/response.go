package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"riskhub_v1_202610/internal/api/dto"
	"riskhub_v1_202610/internal/model"
	"riskhub_v1_202610/internal/service"
)

// writeError 业务错误 -> HTTP 响应
// storage/configuration 只返回概要信息，不暴露底层错误
func writeError(ctx *gin.Context, err error) {
	_ = ctx.Error(err)

	var appErr *service.AppError
	if !errors.As(err, &appErr) {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "服务内部错误"})
		return
	}

	switch appErr.Kind {
	case service.KindAuthentication:
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "认证失败"})
	case service.KindValidation:
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   string(appErr.Kind),
			"message": appErr.Message,
			"fields":  appErr.Fields,
		})
	case service.KindNotFound:
		ctx.JSON(http.StatusNotFound, gin.H{"error": string(appErr.Kind), "message": appErr.Message})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": string(appErr.Kind), "message": appErr.Message})
	}
}

// badRequest JSON 无法解析
func badRequest(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "请求体不是合法的 JSON: " + err.Error()})
}

func toOrderResp(o *model.Order) dto.OrderResp {
	resp := dto.OrderResp{
		ID:               o.ID,
		ExternalOrderID:  o.ExternalOrderID,
		CustomerHash:     o.CustomerHash,
		ShippingCity:     o.ShippingCity,
		ShippingPostcode: o.ShippingPostcode,
		ShippingCountry:  o.ShippingCountry,
		Amount:           o.Amount,
		Currency:         o.Currency,
		Status:           o.Status,
		PaymentMethod:    o.PaymentMethod,
		ShippingMethod:   o.ShippingMethod,
		ItemCount:        o.ItemCount,
		OrderedAt:        o.OrderedAt,
		CompletedAt:      o.CompletedAt,
		VoucherNumbers:   make([]string, 0, len(o.Vouchers)),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	for _, v := range o.Vouchers {
		resp.VoucherNumbers = append(resp.VoucherNumbers, v.VoucherNumber)
	}
	return resp
}

func toVoucherResp(v *model.Voucher) dto.VoucherResp {
	resp := dto.VoucherResp{
		ID:             v.ID,
		VoucherNumber:  v.VoucherNumber,
		OrderID:        v.OrderID,
		CustomerHash:   v.CustomerHash,
		Courier:        v.Courier,
		CourierService: v.CourierService,
		TrackingURL:    v.TrackingURL,
		Status:         v.Status,
		ShippedAt:      v.ShippedAt,
		DeliveredAt:    v.DeliveredAt,
		ReturnedAt:     v.ReturnedAt,
		FailedAt:       v.FailedAt,
		Events:         make([]dto.CourierEventResp, 0, len(v.Events)),
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
	for _, e := range v.Events {
		resp.Events = append(resp.Events, dto.CourierEventResp{
			EventCode:   e.EventCode,
			Description: e.Description,
			Location:    e.Location,
			EventTime:   e.EventTime,
		})
	}
	return resp
}

func toStatResp(s *model.CustomerStat) dto.CustomerStatResp {
	return dto.CustomerStatResp{
		CustomerHash:      s.CustomerHash,
		TotalOrders:       s.TotalOrders,
		Returns:           s.Returns,
		LateDeliveries:    s.LateDeliveries,
		FirstOrderAt:      s.FirstOrderAt,
		LastOrderAt:       s.LastOrderAt,
		DeliveryRiskScore: s.DeliveryRiskScore,
		RiskLevel:         s.RiskLevel,
		UpdatedAt:         s.UpdatedAt,
	}
}
