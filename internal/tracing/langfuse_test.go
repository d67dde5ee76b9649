package tracing

import "testing"

func TestSetup_DisabledWithoutKeys(t *testing.T) {
	t.Parallel()
	for _, cfg := range []Config{{}, {PublicKey: "pk"}, {SecretKey: "sk"}} {
		h, flush, ok := Setup(cfg)
		if ok || h != nil || flush != nil {
			t.Errorf("Setup(%+v) enabled tracing", cfg)
		}
	}
}

func TestSetup_Enabled(t *testing.T) {
	t.Parallel()
	h, flush, ok := Setup(Config{PublicKey: "pk", SecretKey: "sk", Host: "http://127.0.0.1:1"})
	if !ok || h == nil || flush == nil {
		t.Fatal("expected tracing to be enabled")
	}
}
