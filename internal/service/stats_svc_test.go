package service

import (
	"context"
	"testing"
	"time"

	"riskhub_v1_202610/internal/api/dto"
	"riskhub_v1_202610/internal/model"
)

func TestAggregate(t *testing.T) {
	mar1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	orders := []model.Order{
		{OrderedAt: timePtr(mar1.Add(48 * time.Hour))},
		{OrderedAt: timePtr(mar1)},
		{BaseModel: model.BaseModel{CreatedAt: mar1.Add(96 * time.Hour)}},
	}
	vouchers := []model.Voucher{
		{Status: model.VoucherStatusReturned},
		{Status: model.VoucherStatusDelivered, ShippedAt: timePtr(mar1), DeliveredAt: timePtr(mar1.Add(10 * 24 * time.Hour))},
		// 恰好 5 天不算迟到
		{Status: model.VoucherStatusDelivered, ShippedAt: timePtr(mar1), DeliveredAt: timePtr(mar1.Add(5 * 24 * time.Hour))},
		// 缺少发货时间
		{Status: model.VoucherStatusDelivered, DeliveredAt: timePtr(mar1.Add(30 * 24 * time.Hour))},
		{Status: model.VoucherStatusInTransit, ShippedAt: timePtr(mar1)},
	}

	stat := Aggregate(orders, vouchers, DefaultLateDeliveryThreshold)
	if stat.TotalOrders != 3 {
		t.Errorf("total_orders = %d", stat.TotalOrders)
	}
	if stat.Returns != 1 || stat.LateDeliveries != 1 {
		t.Errorf("returns/late = %d/%d, want 1/1", stat.Returns, stat.LateDeliveries)
	}
	if stat.FirstOrderAt == nil || !stat.FirstOrderAt.Equal(mar1) {
		t.Errorf("first_order_at = %v", stat.FirstOrderAt)
	}
	if stat.LastOrderAt == nil || !stat.LastOrderAt.Equal(mar1.Add(96*time.Hour)) {
		t.Errorf("last_order_at = %v", stat.LastOrderAt)
	}
}

func TestAggregate_Empty(t *testing.T) {
	stat := Aggregate(nil, nil, DefaultLateDeliveryThreshold)
	if stat.TotalOrders != 0 || stat.FirstOrderAt != nil || stat.LastOrderAt != nil {
		t.Errorf("unexpected stat: %+v", stat)
	}
}

func TestRecompute_UnknownCustomer(t *testing.T) {
	env := setupTestEnv(t)
	_, err := env.stats.Recompute(context.Background(), env.hasher.HashEmail("nobody@nowhere.gr"))
	if KindOf(err) != KindNotFound {
		t.Errorf("kind = %s, want not_found (err=%v)", KindOf(err), err)
	}

	_, err = env.stats.Recompute(context.Background(), "short")
	if KindOf(err) != KindValidation {
		t.Errorf("kind = %s, want validation", KindOf(err))
	}
}

// 3 笔订单，1 个退回，1 个 10 天才签收 -> 20 + 10 = 30，恰好 green
func TestRecompute_Consistency(t *testing.T) {
	env := setupTestEnv(t)
	shop := createTestShop(t, env.db, "shop-a")
	ctx := context.Background()
	email := "risky@customer.gr"

	for _, id := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		if _, err := env.ingest.IngestOrder(ctx, shop, orderPayload(id, email)); err != nil {
			t.Fatal(err)
		}
	}

	shipped := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	vouchers := []*dto.VoucherPayload{
		{VoucherNumber: "V-1", ExternalOrderID: "ORD-1", Status: model.VoucherStatusReturned, ShippedAt: timePtr(shipped), ReturnedAt: timePtr(shipped.Add(72 * time.Hour))},
		{VoucherNumber: "V-2", ExternalOrderID: "ORD-2", Status: model.VoucherStatusDelivered, ShippedAt: timePtr(shipped), DeliveredAt: timePtr(shipped.Add(10 * 24 * time.Hour))},
		{VoucherNumber: "V-3", ExternalOrderID: "ORD-3", Status: model.VoucherStatusDelivered, ShippedAt: timePtr(shipped), DeliveredAt: timePtr(shipped.Add(48 * time.Hour))},
	}
	var last *IngestResult
	for _, p := range vouchers {
		res, err := env.ingest.IngestVoucher(ctx, shop, p)
		if err != nil {
			t.Fatal(err)
		}
		last = res
	}

	check := func(stat *model.CustomerStat) {
		t.Helper()
		if stat.TotalOrders != 3 || stat.Returns != 1 || stat.LateDeliveries != 1 {
			t.Errorf("counters = %d/%d/%d, want 3/1/1", stat.TotalOrders, stat.Returns, stat.LateDeliveries)
		}
		if stat.DeliveryRiskScore != 30 || stat.RiskLevel != model.RiskLevelGreen {
			t.Errorf("score = %d/%s, want 30/green", stat.DeliveryRiskScore, stat.RiskLevel)
		}
	}
	check(last.Stat)

	stored, err := env.stats.GetStat(ctx, env.hasher.HashEmail(email))
	if err != nil {
		t.Fatal(err)
	}
	check(stored)

	// 重算不改变结果
	again, err := env.stats.Recompute(ctx, stored.CustomerHash)
	if err != nil {
		t.Fatal(err)
	}
	check(again)
	if n := countRows(t, env.db, &model.CustomerStat{}); n != 1 {
		t.Errorf("customer_stats rows = %d, want 1", n)
	}
}

func TestRecomputeAll(t *testing.T) {
	env := setupTestEnv(t)
	shop := createTestShop(t, env.db, "shop-a")
	ctx := context.Background()

	for i, email := range []string{"a@x.gr", "b@x.gr", "c@x.gr"} {
		if _, err := env.ingest.IngestOrder(ctx, shop, orderPayload(string(rune('A'+i)), email)); err != nil {
			t.Fatal(err)
		}
	}
	// 直接改库模拟漂移
	if err := env.db.Model(&model.CustomerStat{}).Where("1 = 1").Update("total_orders", 99).Error; err != nil {
		t.Fatal(err)
	}

	n, err := env.stats.RecomputeAll(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("recomputed = %d, want 3", n)
	}
	stat, _ := env.stats.GetStat(ctx, env.hasher.HashEmail("b@x.gr"))
	if stat.TotalOrders != 1 {
		t.Errorf("total_orders = %d, want 1", stat.TotalOrders)
	}
}
