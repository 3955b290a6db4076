package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"riskhub_v1_202610/internal/api/dto"
	"riskhub_v1_202610/internal/courier"
	"riskhub_v1_202610/internal/metrics"
	"riskhub_v1_202610/internal/model"
	"riskhub_v1_202610/internal/repository"
)

// TrackingService 向物流商查询运单状态，结果走与 webhook 相同的写入链路
type TrackingService struct {
	uow      *repository.IngestUnitOfWork
	ingest   *IngestService
	registry *courier.Registry
	loc      *time.Location
	logger   *zap.Logger
}

// NewTrackingService 创建物流跟踪服务
func NewTrackingService(uow *repository.IngestUnitOfWork, ingest *IngestService, registry *courier.Registry, loc *time.Location, log *zap.Logger) *TrackingService {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TrackingService{
		uow:      uow,
		ingest:   ingest,
		registry: registry,
		loc:      loc,
		logger:   log,
	}
}

// Couriers 已注册客户端的物流商代码
func (s *TrackingService) Couriers() []string {
	return s.registry.Names()
}

// RefreshVoucherForShop 店铺手动刷新自己的运单
func (s *TrackingService) RefreshVoucherForShop(ctx context.Context, shop *model.Shop, voucherID int64) (*IngestResult, error) {
	voucher, err := s.uow.Vouchers.GetByIDForShop(ctx, shop.ID, voucherID)
	if err != nil {
		return nil, WrapStorage("运单不存在", err)
	}
	return s.RefreshVoucher(ctx, voucher)
}

// RefreshVoucher 查询一个运单的最新状态并写入
func (s *TrackingService) RefreshVoucher(ctx context.Context, voucher *model.Voucher) (*IngestResult, error) {
	if voucher.Courier == "" {
		return nil, NewValidationError(map[string]string{"courier": "required"})
	}
	client, err := s.registry.Get(voucher.Courier)
	if err != nil {
		metrics.CourierPollTotal.WithLabelValues(voucher.Courier, "unknown_courier").Inc()
		return nil, &AppError{Kind: KindValidation, Message: "未配置的物流商", Fields: map[string]string{"courier": "oneof=" + strings.Join(s.registry.Names(), " ")}, Err: err}
	}

	status, err := client.GetVoucherStatus(ctx, voucher.VoucherNumber)
	if err != nil {
		result := "error"
		if errors.Is(err, courier.ErrVoucherNotFound) {
			result = "not_found"
		}
		metrics.CourierPollTotal.WithLabelValues(client.Name(), result).Inc()
		if errors.Is(err, courier.ErrVoucherNotFound) {
			return nil, &AppError{Kind: KindNotFound, Message: "物流商查不到该运单", Err: err}
		}
		return nil, &AppError{Kind: KindStorage, Message: "物流商查询失败", Err: err}
	}
	metrics.CourierPollTotal.WithLabelValues(client.Name(), "ok").Inc()

	shop, err := s.uow.Shops.GetByID(ctx, voucher.ShopID)
	if err != nil {
		return nil, WrapStorage("店铺不存在", err)
	}

	payload, err := s.buildPayload(ctx, voucher, status)
	if err != nil {
		return nil, WrapStorage("关联订单查询失败", err)
	}
	return s.ingest.IngestVoucher(ctx, shop, payload)
}

// buildPayload 以库中运单为底，叠加物流商返回的状态和轨迹
// upsert 是整行覆盖，未变化的字段必须原样带上
func (s *TrackingService) buildPayload(ctx context.Context, v *model.Voucher, status *courier.TrackingStatus) (*dto.VoucherPayload, error) {
	payload := &dto.VoucherPayload{
		VoucherNumber:  v.VoucherNumber,
		Courier:        v.Courier,
		CourierService: v.CourierService,
		TrackingURL:    v.TrackingURL,
		Status:         status.VoucherStatus(),
		ShippedAt:      v.ShippedAt,
		DeliveredAt:    v.DeliveredAt,
		ReturnedAt:     v.ReturnedAt,
		FailedAt:       v.FailedAt,
		Metadata:       map[string]any(v.Metadata),
	}
	if v.CustomerHash != nil {
		payload.CustomerHash = *v.CustomerHash
	}
	if v.OrderID != nil {
		order, err := s.uow.Orders.GetByID(ctx, *v.OrderID)
		switch {
		case err == nil:
			payload.ExternalOrderID = order.ExternalOrderID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}

	var first, last *time.Time
	for _, ev := range status.Events {
		at, err := ev.Timestamp(s.loc)
		if err != nil {
			s.logger.Warn("忽略无法解析的物流节点",
				zap.String("courier", v.Courier),
				zap.String("voucher_number", v.VoucherNumber),
				zap.Error(err),
			)
			continue
		}
		at = at.UTC()
		if first == nil || at.Before(*first) {
			t := at
			first = &t
		}
		if last == nil || at.After(*last) {
			t := at
			last = &t
		}
		payload.Events = append(payload.Events, dto.CourierEventPayload{
			EventCode:   ev.Code(),
			Description: truncate(joinNonEmpty(" - ", ev.StatusTitle, ev.Remarks), 500),
			Location:    truncate(ev.Station, 255),
			EventTime:   at,
			Raw: map[string]any{
				"date":         ev.Date,
				"time":         ev.Time,
				"station":      ev.Station,
				"status_title": ev.StatusTitle,
				"remarks":      ev.Remarks,
			},
		})
	}

	// 补齐状态对应的时间
	if payload.ShippedAt == nil && payload.Status != model.VoucherStatusCreated {
		payload.ShippedAt = first
	}
	switch payload.Status {
	case model.VoucherStatusDelivered:
		if status.DeliveryDate != nil {
			t := status.DeliveryDate.UTC()
			payload.DeliveredAt = &t
		} else if payload.DeliveredAt == nil {
			payload.DeliveredAt = last
		}
	case model.VoucherStatusReturned:
		if payload.ReturnedAt == nil {
			payload.ReturnedAt = last
		}
	case model.VoucherStatusFailed:
		if payload.FailedAt == nil {
			payload.FailedAt = last
		}
	}
	return payload, nil
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
