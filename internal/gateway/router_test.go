package gateway

import "testing"

// TestResolve はパス接頭辞からのサービス解決のテスト。
func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		path        string
		wantService string
		wantOK      bool
	}{
		{name: "認証パスはユーザーサービスに解決される", path: "/api/auth/login/", wantService: ServiceUser, wantOK: true},
		{name: "ユーザーパスはユーザーサービスに解決される", path: "/api/users/1/", wantService: ServiceUser, wantOK: true},
		{name: "商品パスは商品サービスに解決される", path: "/api/products/", wantService: ServiceProduct, wantOK: true},
		{name: "商品予約パスも商品サービスに解決される", path: "/api/products/5/reserve/", wantService: ServiceProduct, wantOK: true},
		{name: "カテゴリパスは商品サービスに解決される", path: "/api/categories/", wantService: ServiceProduct, wantOK: true},
		{name: "カートパスはカートサービスに解決される", path: "/api/cart/", wantService: ServiceCart, wantOK: true},
		{name: "注文パスは注文サービスに解決される", path: "/api/orders/42/", wantService: ServiceOrder, wantOK: true},
		{name: "未知のAPIパスは解決されない", path: "/api/unknown/", wantOK: false},
		{name: "接頭辞が途中までしか一致しないパスは解決されない", path: "/api/cartoon/", wantOK: false},
		{name: "API以外のパスは解決されない", path: "/static/logo.png", wantOK: false},
		{name: "ルートパスは解決されない", path: "/", wantOK: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			service, ok := resolve(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if ok && service != tt.wantService {
				t.Errorf("service: got %q, want %q", service, tt.wantService)
			}
		})
	}
}
