package service

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"riskhub_v1_202610/internal/api/dto"
	"riskhub_v1_202610/internal/metrics"
	"riskhub_v1_202610/internal/model"
	"riskhub_v1_202610/internal/repository"
	"riskhub_v1_202610/pkg/logger"
	"riskhub_v1_202610/pkg/pseudonym"
)

// DefaultIngestTimeout 单次写入（含重算）的总超时
const DefaultIngestTimeout = 30 * time.Second

// IngestResult 写入结果
type IngestResult struct {
	OrderID      int64
	VoucherID    int64
	CustomerHash *string
	Stat         *model.CustomerStat
	// NewEvents 本次实际新增的物流轨迹条数
	NewEvents int64
}

// IngestService 订单/运单写入
// 校验 -> 客户哈希 -> 客户锁 -> 事务（客户 upsert、订单/运单 upsert、统计重算）
type IngestService struct {
	uow      *repository.IngestUnitOfWork
	hasher   *pseudonym.Hasher
	stats    *StatsService
	locker   *CustomerLocker
	validate *validator.Validate
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewIngestService 创建写入服务
func NewIngestService(uow *repository.IngestUnitOfWork, hasher *pseudonym.Hasher, stats *StatsService, locker *CustomerLocker, timeout time.Duration, log *zap.Logger) *IngestService {
	if timeout <= 0 {
		timeout = DefaultIngestTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IngestService{
		uow:      uow,
		hasher:   hasher,
		stats:    stats,
		locker:   locker,
		validate: newValidator(),
		timeout:  timeout,
		logger:   log,
		now:      time.Now,
	}
}

// newValidator 错误字段名使用 json tag
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ==================== 订单 ====================

// IngestOrder 写入一笔订单
func (s *IngestService) IngestOrder(ctx context.Context, shop *model.Shop, payload *dto.OrderPayload) (*IngestResult, error) {
	start := time.Now()
	result, err := s.ingestOrder(ctx, shop, payload)
	observeIngest("order", start, err)

	if err != nil {
		fields := []zap.Field{zap.String("kind", string(KindOf(err))), zap.Error(err)}
		if shop != nil {
			fields = append(fields, zap.Int64("shop_id", shop.ID))
		}
		if payload != nil {
			fields = append(fields, redactOrder(s.hasher, payload)...)
		}
		s.logger.Warn("订单写入失败", fields...)
		return nil, err
	}
	return result, nil
}

func (s *IngestService) ingestOrder(ctx context.Context, shop *model.Shop, payload *dto.OrderPayload) (*IngestResult, error) {
	if shop == nil {
		return nil, &AppError{Kind: KindAuthentication, Message: "店铺未认证"}
	}
	if payload == nil {
		return nil, NewValidationError(map[string]string{"payload": "required"})
	}
	normalizeOrderPayload(payload)
	if err := s.validate.Struct(payload); err != nil {
		return nil, NewValidationError(validationFields(err))
	}

	customerHash := s.hasher.HashEmail(payload.CustomerEmail)
	if customerHash == "" {
		return nil, NewValidationError(map[string]string{"customer_email": "required"})
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	var result *IngestResult

	plan := func(uow *repository.IngestUnitOfWork) ([]string, error) {
		return orderAffectedHashes(ctx, uow, shop.ID, payload.ExternalOrderID, customerHash)
	}
	err := s.withCustomerLocks(ctx, plan, func(tx *repository.IngestUnitOfWork, affected []string) error {
		result = &IngestResult{CustomerHash: &customerHash}

		customer, err := tx.Customers.Touch(ctx, customerHash, now)
		if err != nil {
			return err
		}

		order := s.buildOrder(shop, customer, customerHash, payload)
		saved, err := tx.Orders.Upsert(ctx, order)
		if err != nil {
			return err
		}
		result.OrderID = saved.ID

		// 订单换了邮箱：挂在订单上的运单跟着换到新客户
		if _, err := tx.Vouchers.RelinkByOrder(ctx, saved.ID, customerHash, customer.ID); err != nil {
			return err
		}

		stat, err := s.stats.RecomputeIn(ctx, tx, customerHash)
		if err != nil {
			return err
		}
		result.Stat = stat

		return s.recomputeOthers(ctx, tx, customerHash, affected)
	})
	if err != nil {
		return nil, WrapStorage("订单写入失败", err)
	}

	s.logger.Info("订单已写入",
		zap.Int64("shop_id", shop.ID),
		zap.Int64("order_id", result.OrderID),
		zap.String("external_order_id", payload.ExternalOrderID),
		zap.String("customer_hash", logger.Redact(customerHash)),
		zap.Int("risk_score", result.Stat.DeliveryRiskScore),
	)
	return result, nil
}

func (s *IngestService) buildOrder(shop *model.Shop, customer *model.Customer, customerHash string, p *dto.OrderPayload) *model.Order {
	customerID := customer.ID
	order := &model.Order{
		ShopID:           shop.ID,
		ExternalOrderID:  p.ExternalOrderID,
		CustomerID:       &customerID,
		CustomerHash:     customerHash,
		NameHash:         s.hasher.Hash(pseudonym.KindName, p.CustomerName),
		PhoneHash:        s.hasher.Hash(pseudonym.KindPhone, p.CustomerPhone),
		AddressHash:      s.hasher.Hash(pseudonym.KindAddress, p.ShippingAddress),
		ShippingCity:     p.ShippingCity,
		ShippingPostcode: p.ShippingPostcode,
		ShippingCountry:  p.ShippingCountry,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Status:           p.Status,
		PaymentMethod:    p.PaymentMethod,
		ShippingMethod:   p.ShippingMethod,
		ItemCount:        p.ItemCount,
		OrderedAt:        p.OrderedAt,
		CompletedAt:      p.CompletedAt,
	}
	if len(p.Metadata) > 0 {
		order.Metadata = datatypes.JSONMap(p.Metadata)
	}
	return order
}

// ==================== 运单 ====================

// IngestVoucher 写入一个运单（可附带物流轨迹）
func (s *IngestService) IngestVoucher(ctx context.Context, shop *model.Shop, payload *dto.VoucherPayload) (*IngestResult, error) {
	start := time.Now()
	result, err := s.ingestVoucher(ctx, shop, payload)
	observeIngest("voucher", start, err)

	if err != nil {
		fields := []zap.Field{zap.String("kind", string(KindOf(err))), zap.Error(err)}
		if shop != nil {
			fields = append(fields, zap.Int64("shop_id", shop.ID))
		}
		if payload != nil {
			fields = append(fields,
				zap.String("voucher_number", payload.VoucherNumber),
				zap.String("external_order_id", payload.ExternalOrderID),
				zap.String("customer_hash", logger.Redact(payload.CustomerHash)),
				zap.String("status", payload.Status),
			)
		}
		s.logger.Warn("运单写入失败", fields...)
		return nil, err
	}
	return result, nil
}

func (s *IngestService) ingestVoucher(ctx context.Context, shop *model.Shop, payload *dto.VoucherPayload) (*IngestResult, error) {
	if shop == nil {
		return nil, &AppError{Kind: KindAuthentication, Message: "店铺未认证"}
	}
	if payload == nil {
		return nil, NewValidationError(map[string]string{"payload": "required"})
	}
	normalizeVoucherPayload(payload)
	if err := s.validate.Struct(payload); err != nil {
		return nil, NewValidationError(validationFields(err))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	var result *IngestResult

	plan := func(uow *repository.IngestUnitOfWork) ([]string, error) {
		return voucherAffectedHashes(ctx, uow, shop.ID, payload)
	}
	err := s.withCustomerLocks(ctx, plan, func(tx *repository.IngestUnitOfWork, affected []string) error {
		result = &IngestResult{}

		order, err := resolveOrder(ctx, tx, shop.ID, payload.ExternalOrderID)
		if err != nil {
			return err
		}
		customerHash := resolveVoucherHash(order, payload)

		var customer *model.Customer
		if customerHash != "" {
			if customer, err = tx.Customers.Touch(ctx, customerHash, now); err != nil {
				return err
			}
		}

		voucher := buildVoucher(shop, order, customer, customerHash, payload)
		saved, err := tx.Vouchers.Upsert(ctx, voucher)
		if err != nil {
			return err
		}
		result.VoucherID = saved.ID
		result.CustomerHash = saved.CustomerHash

		if len(payload.Events) > 0 {
			added, err := tx.Events.Append(ctx, buildEvents(saved, payload.Events))
			if err != nil {
				return err
			}
			result.NewEvents = added
		}

		if customerHash != "" {
			stat, err := s.stats.RecomputeIn(ctx, tx, customerHash)
			if err != nil {
				return err
			}
			result.Stat = stat
		}
		// 运单换了客户：旧客户的统计也要重算
		return s.recomputeOthers(ctx, tx, customerHash, affected)
	})
	if err != nil {
		return nil, WrapStorage("运单写入失败", err)
	}

	if result.NewEvents > 0 {
		metrics.CourierEventsAppended.Add(float64(result.NewEvents))
	}
	fields := []zap.Field{
		zap.Int64("shop_id", shop.ID),
		zap.Int64("voucher_id", result.VoucherID),
		zap.String("voucher_number", payload.VoucherNumber),
		zap.String("status", payload.Status),
		zap.Int64("new_events", result.NewEvents),
	}
	if result.CustomerHash != nil {
		fields = append(fields, zap.String("customer_hash", logger.Redact(*result.CustomerHash)))
	}
	s.logger.Info("运单已写入", fields...)
	return result, nil
}

// ==================== 客户锁 ====================

// maxLockAttempts 加锁后发现客户归属已变化时的最大重试次数
const maxLockAttempts = 3

var errLockStale = errors.New("客户归属在加锁期间发生变化")

// withCustomerLocks 锁住本次写入涉及的全部客户后执行事务
// plan 在锁外和事务内各执行一次，事务内读到的客户若不在已锁集合中，放弃本次事务重试
func (s *IngestService) withCustomerLocks(
	ctx context.Context,
	plan func(uow *repository.IngestUnitOfWork) ([]string, error),
	fn func(tx *repository.IngestUnitOfWork, affected []string) error,
) error {
	for attempt := 1; attempt <= maxLockAttempts; attempt++ {
		hashes, err := plan(s.uow)
		if err != nil {
			return err
		}
		locked := lockKeys(hashes)

		unlock, err := s.locker.Lock(ctx, locked...)
		if err != nil {
			return err
		}
		err = s.uow.Transaction(ctx, func(tx *repository.IngestUnitOfWork) error {
			affected, err := plan(tx)
			if err != nil {
				return err
			}
			if !coversAll(locked, affected...) {
				return errLockStale
			}
			return fn(tx, affected)
		})
		unlock()

		if !errors.Is(err, errLockStale) {
			return err
		}
		s.logger.Debug("客户归属变化，重新加锁", zap.Int("attempt", attempt))
	}
	return errLockStale
}

// recomputeOthers 重算 primary 之外受影响的客户，已不存在的客户跳过
func (s *IngestService) recomputeOthers(ctx context.Context, tx *repository.IngestUnitOfWork, primary string, affected []string) error {
	for _, hash := range affected {
		if hash == "" || hash == primary {
			continue
		}
		if _, err := s.stats.RecomputeIn(ctx, tx, hash); err != nil && KindOf(err) != KindNotFound {
			return err
		}
	}
	return nil
}

// orderAffectedHashes 订单写入涉及的客户：新客户、订单原客户、订单下运单的客户
func orderAffectedHashes(ctx context.Context, uow *repository.IngestUnitOfWork, shopID int64, externalOrderID, customerHash string) ([]string, error) {
	hashes := []string{customerHash}

	existing, err := resolveOrder(ctx, uow, shopID, externalOrderID)
	if err != nil || existing == nil {
		return hashes, err
	}
	hashes = append(hashes, existing.CustomerHash)

	vouchers, err := uow.Vouchers.ListByOrderID(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	for _, v := range vouchers {
		if v.CustomerHash != nil {
			hashes = append(hashes, *v.CustomerHash)
		}
	}
	return lockKeys(hashes), nil
}

// voucherAffectedHashes 运单写入涉及的客户：解析出的客户、运单原客户
func voucherAffectedHashes(ctx context.Context, uow *repository.IngestUnitOfWork, shopID int64, payload *dto.VoucherPayload) ([]string, error) {
	order, err := resolveOrder(ctx, uow, shopID, payload.ExternalOrderID)
	if err != nil {
		return nil, err
	}
	hashes := []string{resolveVoucherHash(order, payload)}

	existing, err := uow.Vouchers.GetByShopAndNumber(ctx, shopID, payload.VoucherNumber)
	switch {
	case err == nil:
		if existing.CustomerHash != nil {
			hashes = append(hashes, *existing.CustomerHash)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return lockKeys(hashes), nil
}

// resolveOrder 按外部订单号查订单，未提供或不存在时返回 nil
func resolveOrder(ctx context.Context, uow *repository.IngestUnitOfWork, shopID int64, externalOrderID string) (*model.Order, error) {
	if externalOrderID == "" {
		return nil, nil
	}
	order, err := uow.Orders.GetByShopAndExternalID(ctx, shopID, externalOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return order, nil
}

// resolveVoucherHash 订单上的哈希优先，其次是直接提供的哈希，都没有则为空
func resolveVoucherHash(order *model.Order, payload *dto.VoucherPayload) string {
	if order != nil && order.CustomerHash != "" {
		return order.CustomerHash
	}
	return payload.CustomerHash
}

func buildVoucher(shop *model.Shop, order *model.Order, customer *model.Customer, customerHash string, p *dto.VoucherPayload) *model.Voucher {
	voucher := &model.Voucher{
		ShopID:         shop.ID,
		VoucherNumber:  p.VoucherNumber,
		Courier:        p.Courier,
		CourierService: p.CourierService,
		TrackingURL:    p.TrackingURL,
		Status:         p.Status,
		ShippedAt:      p.ShippedAt,
		DeliveredAt:    p.DeliveredAt,
		ReturnedAt:     p.ReturnedAt,
		FailedAt:       p.FailedAt,
	}
	if order != nil {
		orderID := order.ID
		voucher.OrderID = &orderID
	}
	if customerHash != "" {
		hash := customerHash
		voucher.CustomerHash = &hash
	}
	if customer != nil {
		customerID := customer.ID
		voucher.CustomerID = &customerID
	}
	if len(p.Metadata) > 0 {
		voucher.Metadata = datatypes.JSONMap(p.Metadata)
	}
	return voucher
}

func buildEvents(voucher *model.Voucher, items []dto.CourierEventPayload) []model.CourierEvent {
	events := make([]model.CourierEvent, 0, len(items))
	for _, item := range items {
		ev := model.CourierEvent{
			VoucherID:   voucher.ID,
			Courier:     voucher.Courier,
			EventCode:   item.EventCode,
			Description: item.Description,
			Location:    item.Location,
			EventTime:   item.EventTime.UTC(),
		}
		if len(item.Raw) > 0 {
			ev.RawPayload = datatypes.JSON(toJSON(item.Raw))
		}
		events = append(events, ev)
	}
	return events
}

// ==================== 辅助 ====================

func normalizeOrderPayload(p *dto.OrderPayload) {
	p.ExternalOrderID = strings.TrimSpace(p.ExternalOrderID)
	p.CustomerEmail = strings.TrimSpace(p.CustomerEmail)
	p.ShippingCountry = strings.ToUpper(strings.TrimSpace(p.ShippingCountry))
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	p.PaymentMethod = strings.ToLower(strings.TrimSpace(p.PaymentMethod))
}

func normalizeVoucherPayload(p *dto.VoucherPayload) {
	p.VoucherNumber = strings.TrimSpace(p.VoucherNumber)
	p.ExternalOrderID = strings.TrimSpace(p.ExternalOrderID)
	p.CustomerHash = strings.ToLower(strings.TrimSpace(p.CustomerHash))
	p.Courier = strings.ToLower(strings.TrimSpace(p.Courier))
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
}

// redactOrder 日志只输出哈希与非敏感字段
func redactOrder(h *pseudonym.Hasher, p *dto.OrderPayload) []zap.Field {
	return []zap.Field{
		zap.String("external_order_id", p.ExternalOrderID),
		zap.String("customer_hash", logger.Redact(h.HashEmail(p.CustomerEmail))),
		zap.String("shipping_country", p.ShippingCountry),
		zap.String("status", p.Status),
	}
}

func toJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func observeIngest(kind string, start time.Time, err error) {
	metrics.IngestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = string(KindOf(err))
	}
	metrics.IngestTotal.WithLabelValues(kind, result).Inc()
}
