package signature

import "testing"

const testSecret = "shop-secret-for-tests"

func TestSign_RoundTrip(t *testing.T) {
	body := []byte(`{"a":1}`)
	sig := SignAt(testSecret, 1700000000, "POST", "/api/orders", body)

	expected := Sign(testSecret, "1700000000", "POST", "/api/orders", body)
	if !Verify(expected, sig) {
		t.Fatal("同样的四个输入应校验通过")
	}

	// 修改 body 任意一个字节
	tampered := []byte(`{"a":2}`)
	if Verify(Sign(testSecret, "1700000000", "POST", "/api/orders", tampered), sig) {
		t.Error("body 改动后签名不应通过")
	}
}

func TestSign_InputsAffectSignature(t *testing.T) {
	base := Sign(testSecret, "1700000000", "POST", "/api/orders", []byte(`{"a":1}`))

	variants := map[string]string{
		"timestamp": Sign(testSecret, "1700000001", "POST", "/api/orders", []byte(`{"a":1}`)),
		"method":    Sign(testSecret, "1700000000", "PUT", "/api/orders", []byte(`{"a":1}`)),
		"path":      Sign(testSecret, "1700000000", "POST", "/api/vouchers", []byte(`{"a":1}`)),
		"secret":    Sign("other-secret", "1700000000", "POST", "/api/orders", []byte(`{"a":1}`)),
	}
	for name, sig := range variants {
		if sig == base {
			t.Errorf("修改 %s 后签名未变化", name)
		}
	}
}

func TestCanonicalPath(t *testing.T) {
	tests := map[string]string{
		"/api/orders":          "/api/orders",
		"/api/orders/":         "/api/orders",
		"/api/orders?page=2":   "/api/orders",
		"/api/orders/?x=1&y=2": "/api/orders",
		"api/orders":           "/api/orders",
		"/":                    "/",
		"":                     "/",
	}
	for in, want := range tests {
		if got := CanonicalPath(in); got != want {
			t.Errorf("CanonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSign_PathNormalized(t *testing.T) {
	a := Sign(testSecret, "1", "post", "/api/orders/", nil)
	b := Sign(testSecret, "1", "POST", "/api/orders?debug=1", nil)
	if a != b {
		t.Error("路径与方法归一化后签名应一致")
	}
}

func TestVerify_RejectsGarbage(t *testing.T) {
	expected := Sign(testSecret, "1", "POST", "/", nil)
	for _, received := range []string{"", "zz", expected[:10]} {
		if Verify(expected, received) {
			t.Errorf("Verify(%q) = true", received)
		}
	}
	if !Verify(expected, "  "+expected+" ") {
		t.Error("首尾空白应被忽略")
	}
}
