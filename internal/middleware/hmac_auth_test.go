package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"riskhub_v1_202610/internal/model"
	"riskhub_v1_202610/internal/service"
	"riskhub_v1_202610/pkg/signature"
)

const (
	testAPIKey = "rk_test"
	testSecret = "0f1e2d3c4b5a69788796a5b4c3d2e1f0"
)

type fakeShops struct {
	shops map[string]*model.Shop
	err   error
}

func (f *fakeShops) GetActiveByAPIKey(_ context.Context, apiKey string) (*model.Shop, error) {
	if f.err != nil {
		return nil, f.err
	}
	if shop, ok := f.shops[apiKey]; ok {
		return shop, nil
	}
	return nil, service.WrapStorage("店铺不存在或已停用", gorm.ErrRecordNotFound)
}

var fixedNow = time.Unix(1700000000, 0)

func setupAuthRouter(shops ShopLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HMACAuth(shops, HMACAuthConfig{Now: func() time.Time { return fixedNow }}, nil))
	r.POST("/api/orders", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(http.StatusOK, gin.H{
			"shop_id":     GetShopID(c),
			"ctx_shop_id": ShopFromContext(c.Request.Context()).ID,
			"body":        string(body),
		})
	})
	return r
}

func defaultShops() *fakeShops {
	return &fakeShops{shops: map[string]*model.Shop{
		testAPIKey: {BaseModel: model.BaseModel{ID: 7}, APIKey: testAPIKey, Secret: testSecret, Active: true},
	}}
}

func signedRequest(ts int64, path, body, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(signature.HeaderAPIKey, testAPIKey)
	req.Header.Set(signature.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(signature.HeaderSignature, signature.SignAt(secret, ts, http.MethodPost, path, []byte(body)))
	return req
}

func TestHMACAuth_Valid(t *testing.T) {
	r := setupAuthRouter(defaultShops())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(fixedNow.Unix(), "/api/orders", `{"a":1}`, testSecret))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		ShopID    int64  `json:"shop_id"`
		CtxShopID int64  `json:"ctx_shop_id"`
		Body      string `json:"body"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ShopID != 7 || resp.CtxShopID != 7 {
		t.Errorf("shop not propagated: %+v", resp)
	}
	if resp.Body != `{"a":1}` {
		t.Errorf("body not restored: %q", resp.Body)
	}
}

func TestHMACAuth_QueryStringIgnored(t *testing.T) {
	r := setupAuthRouter(defaultShops())
	ts := fixedNow.Unix()
	req := signedRequest(ts, "/api/orders", `{}`, testSecret)
	req.URL.RawQuery = "debug=1"

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHMACAuth_ReplayWindow(t *testing.T) {
	tests := []struct {
		name   string
		offset time.Duration
		want   int
	}{
		{"299s old accepted", -299 * time.Second, http.StatusOK},
		{"300s old accepted", -300 * time.Second, http.StatusOK},
		{"301s old rejected", -301 * time.Second, http.StatusUnauthorized},
		{"299s ahead accepted", 299 * time.Second, http.StatusOK},
		{"301s ahead rejected", 301 * time.Second, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupAuthRouter(defaultShops())
			w := httptest.NewRecorder()
			r.ServeHTTP(w, signedRequest(fixedNow.Add(tt.offset).Unix(), "/api/orders", `{"a":1}`, testSecret))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHMACAuth_Rejections(t *testing.T) {
	ts := fixedNow.Unix()

	tampered := signedRequest(ts, "/api/orders", `{"a":1}`, testSecret)
	tampered.Body = io.NopCloser(strings.NewReader(`{"a":2}`))

	wrongSecret := signedRequest(ts, "/api/orders", `{"a":1}`, "another-secret")

	unknownKey := signedRequest(ts, "/api/orders", `{"a":1}`, testSecret)
	unknownKey.Header.Set(signature.HeaderAPIKey, "rk_unknown")

	missing := signedRequest(ts, "/api/orders", `{"a":1}`, testSecret)
	missing.Header.Del(signature.HeaderSignature)

	badTS := signedRequest(ts, "/api/orders", `{"a":1}`, testSecret)
	badTS.Header.Set(signature.HeaderTimestamp, "yesterday")

	tests := map[string]*http.Request{
		"tampered body":     tampered,
		"wrong secret":      wrongSecret,
		"unknown key":       unknownKey,
		"missing signature": missing,
		"bad timestamp":     badTS,
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			r := setupAuthRouter(defaultShops())
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			var resp map[string]string
			_ = json.Unmarshal(w.Body.Bytes(), &resp)
			if resp["error"] != "unauthorized" {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestHMACAuth_SameMessageForUnknownKeyAndBadSignature(t *testing.T) {
	ts := fixedNow.Unix()
	unknownKey := signedRequest(ts, "/api/orders", `{}`, testSecret)
	unknownKey.Header.Set(signature.HeaderAPIKey, "rk_unknown")
	badSig := signedRequest(ts, "/api/orders", `{}`, "nope")

	r := setupAuthRouter(defaultShops())
	w1, w2 := httptest.NewRecorder(), httptest.NewRecorder()
	r.ServeHTTP(w1, unknownKey)
	r.ServeHTTP(w2, badSig)
	if w1.Body.String() != w2.Body.String() {
		t.Errorf("responses differ: %s vs %s", w1.Body.String(), w2.Body.String())
	}
}

func TestHMACAuth_LookupFailure(t *testing.T) {
	r := setupAuthRouter(&fakeShops{err: errors.New("connection refused")})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(fixedNow.Unix(), "/api/orders", `{}`, testSecret))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
