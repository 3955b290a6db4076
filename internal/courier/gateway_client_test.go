package courier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGatewayClient_GetVoucherStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "gw-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/vouchers/7001234567/status":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"status": "delivered",
				"status_title": "Παραδόθηκε",
				"delivered": true,
				"returned": false,
				"delivery_date": "2024-03-05T10:00:00Z",
				"events": [
					{"date": "2024-03-01", "time": "09:00", "station": "Athens", "status_title": "Picked up", "remarks": ""},
					{"date": "2024-03-05", "time": "10:00", "station": "Patras", "status_title": "Delivered", "remarks": "signed"}
				]
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewGatewayClient("acs", GatewayConfig{BaseURL: srv.URL, APIKey: "gw-key", Timeout: 2 * time.Second})
	if c.Name() != "acs" {
		t.Errorf("Name() = %q", c.Name())
	}

	status, err := c.GetVoucherStatus(context.Background(), "7001234567")
	if err != nil {
		t.Fatalf("GetVoucherStatus: %v", err)
	}
	if !status.Delivered || len(status.Events) != 2 {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.DeliveryDate == nil || status.DeliveryDate.Day() != 5 {
		t.Errorf("delivery_date = %v", status.DeliveryDate)
	}
	if status.Events[1].Station != "Patras" {
		t.Errorf("station = %q", status.Events[1].Station)
	}

	_, err = c.GetVoucherStatus(context.Background(), "missing")
	if !errors.Is(err, ErrVoucherNotFound) {
		t.Errorf("err = %v, want ErrVoucherNotFound", err)
	}
}
