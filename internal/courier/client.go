package courier

//go:generate mockgen -source=client.go -destination=mock/client_mock.go -package=mock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"riskhub_v1_202610/internal/model"
)

var (
	// ErrUnknownCourier 未注册的物流商
	ErrUnknownCourier = errors.New("courier: unknown courier")
	// ErrVoucherNotFound 物流商查不到该运单
	ErrVoucherNotFound = errors.New("courier: voucher not found")
)

// Client 物流商查询接口
// 各家物流商协议不同（REST / SOAP），统一归一化为 TrackingStatus
type Client interface {
	Name() string
	GetVoucherStatus(ctx context.Context, voucherNumber string) (*TrackingStatus, error)
}

// TrackingStatus 归一化后的运单状态
type TrackingStatus struct {
	Status       string          `json:"status"`
	StatusTitle  string          `json:"status_title"`
	Delivered    bool            `json:"delivered"`
	Returned     bool            `json:"returned"`
	DeliveryDate *time.Time      `json:"delivery_date,omitempty"`
	Events       []TrackingEvent `json:"events"`
}

// TrackingEvent 物流商返回的一个节点，日期与时间分开给出
type TrackingEvent struct {
	Date        string `json:"date"` // 2006-01-02
	Time        string `json:"time"` // 15:04 或 15:04:05
	Station     string `json:"station"`
	StatusTitle string `json:"status_title"`
	Remarks     string `json:"remarks"`
}

// Timestamp 合并日期与时间，按 loc 解析
func (e TrackingEvent) Timestamp(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	clock := strings.TrimSpace(e.Time)
	if clock == "" {
		clock = "00:00"
	}
	value := strings.TrimSpace(e.Date) + " " + clock
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "02/01/2006 15:04:05", "02/01/2006 15:04"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("courier: invalid event time %q", value)
}

// Code 节点代码：状态标题归一化为 snake_case
func (e TrackingEvent) Code() string {
	fields := strings.FieldsFunc(strings.ToLower(e.StatusTitle), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/' || r == '.'
	})
	if len(fields) == 0 {
		return "unknown"
	}
	code := []rune(strings.Join(fields, "_"))
	if len(code) > 64 {
		code = code[:64]
	}
	return string(code)
}

// VoucherStatus 映射为运单状态
// 退回优先于签收；未知状态有轨迹视为运输中，没有轨迹视为已创建
func (s *TrackingStatus) VoucherStatus() string {
	switch {
	case s.Returned:
		return model.VoucherStatusReturned
	case s.Delivered:
		return model.VoucherStatusDelivered
	}
	status := strings.ToLower(strings.TrimSpace(s.Status))
	for _, known := range model.VoucherStatuses {
		if status == known {
			return known
		}
	}
	if len(s.Events) > 0 {
		return model.VoucherStatusInTransit
	}
	return model.VoucherStatusCreated
}

// ==================== Registry ====================

// Registry 物流商名称 -> Client
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRegistry 创建注册表
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client)}
	for _, c := range clients {
		r.Register(c)
	}
	return r
}

// Register 注册（同名覆盖）
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[strings.ToLower(c.Name())] = c
}

// Get 取物流商客户端
func (r *Registry) Get(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCourier, name)
	}
	return c, nil
}

// Names 已注册的物流商
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
