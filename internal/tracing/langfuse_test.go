package tracing

import "testing"

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()
	for _, cfg := range []Config{
		{},
		{PublicKey: "pk"},
		{SecretKey: "sk"},
	} {
		h, flush, ok := Setup(cfg)
		if ok || h != nil || flush != nil {
			t.Errorf("Setup(%+v) should be disabled", cfg)
		}
	}
}
