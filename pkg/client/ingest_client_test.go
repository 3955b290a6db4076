package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"riskhub_v1_202610/internal/api/dto"
	"riskhub_v1_202610/pkg/signature"
)

const (
	testKey    = "rk_test"
	testSecret = "0123456789abcdef0123456789abcdef"
)

// verifyingServer 按服务端同样的规则校验签名
func verifyingServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body []byte)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get(signature.HeaderAPIKey) != testKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		expected := signature.Sign(testSecret, r.Header.Get(signature.HeaderTimestamp), r.Method, r.URL.Path, body)
		if !signature.Verify(expected, r.Header.Get(signature.HeaderSignature)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","message":"认证失败"}`))
			return
		}
		handler(w, r, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL, secret string) *IngestClient {
	t.Helper()
	c, err := NewIngestClient(Config{BaseURL: baseURL, APIKey: testKey, Secret: secret, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestNewIngestClient_RequiresCredentials(t *testing.T) {
	if _, err := NewIngestClient(Config{BaseURL: "http://x"}); err == nil {
		t.Error("缺少 key/secret 应报错")
	}
	if _, err := NewIngestClient(Config{APIKey: "k", Secret: "s"}); err == nil {
		t.Error("缺少 base url 应报错")
	}
}

func TestSendOrder_Signed(t *testing.T) {
	srv := verifyingServer(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/orders" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(signature.HeaderTimestamp) != "1700000000" {
			t.Errorf("timestamp = %q", r.Header.Get(signature.HeaderTimestamp))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"order_id":7,"customer_hash":"abc"}`))
	})

	c := newTestClient(t, srv.URL, testSecret)
	resp, err := c.SendOrder(context.Background(), dto.OrderPayload{
		ExternalOrderID: "A-1",
		CustomerEmail:   "a@example.com",
		Amount:          decimal.RequireFromString("12.50"),
	})
	if err != nil {
		t.Fatalf("SendOrder: %v", err)
	}
	if !resp.Success || resp.OrderID != 7 || resp.CustomerHash == nil || *resp.CustomerHash != "abc" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSendVoucher_ValidationError(t *testing.T) {
	srv := verifyingServer(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"validation","message":"参数校验失败: voucher_number","fields":{"voucher_number":"required"}}`))
	})

	c := newTestClient(t, srv.URL, testSecret)
	_, err := c.SendVoucher(context.Background(), dto.VoucherPayload{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Code != "validation" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if apiErr.Fields["voucher_number"] != "required" {
		t.Errorf("fields = %v", apiErr.Fields)
	}
}

func TestGetCustomerStats_SignsEmptyBody(t *testing.T) {
	hash := "5d41402abc4b2a76b9719d911017c5925d41402abc4b2a76b9719d911017c592"
	srv := verifyingServer(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		if len(body) != 0 {
			t.Errorf("GET body = %q", body)
		}
		if r.URL.Path != "/api/customers/"+hash+"/stats" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"customer_hash":"` + hash + `","total_orders":3,"delivery_risk_score":30,"risk_level":"green"}`))
	})

	c := newTestClient(t, srv.URL, testSecret)
	stat, err := c.GetCustomerStats(context.Background(), hash)
	if err != nil {
		t.Fatalf("GetCustomerStats: %v", err)
	}
	if stat.TotalOrders != 3 || stat.DeliveryRiskScore != 30 || stat.RiskLevel != "green" {
		t.Errorf("unexpected stat %+v", stat)
	}
}

func TestWrongSecret_Unauthorized(t *testing.T) {
	srv := verifyingServer(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		t.Error("签名错误的请求不应到达 handler")
	})

	c := newTestClient(t, srv.URL, "wrong-secret-wrong-secret-wrong!!")
	_, err := c.SendOrder(context.Background(), dto.OrderPayload{ExternalOrderID: "A-1", CustomerEmail: "a@example.com"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 APIError, got %v", err)
	}
}
