package health

import (
	"context"
	"errors"
	"testing"
)

type fakeChecker struct {
	err error
}

func (f *fakeChecker) HealthCheck(ctx context.Context) error {
	return f.err
}

func TestCheckNoCheckers(t *testing.T) {
	st := Check(context.Background(), nil)
	if !st.Healthy {
		t.Error("Check() with no checkers should be healthy")
	}
	if st.Checks != nil {
		t.Errorf("Check() Checks = %v, want nil", st.Checks)
	}
}

func TestCheckAllHealthy(t *testing.T) {
	st := Check(context.Background(), map[string]Checker{
		"db":    &fakeChecker{},
		"redis": &fakeChecker{},
	})
	if !st.Healthy {
		t.Error("Check() should be healthy when all probes pass")
	}
	if st.Checks["db"] != "ok" || st.Checks["redis"] != "ok" {
		t.Errorf("Check() Checks = %v, want all ok", st.Checks)
	}
}

func TestCheckOneFailing(t *testing.T) {
	st := Check(context.Background(), map[string]Checker{
		"db":    &fakeChecker{},
		"redis": &fakeChecker{err: errors.New("connection refused")},
	})
	if st.Healthy {
		t.Error("Check() should be unhealthy when a probe fails")
	}
	if st.Checks["db"] != "ok" {
		t.Errorf("Check() db = %q, want ok", st.Checks["db"])
	}
	if st.Checks["redis"] != "connection refused" {
		t.Errorf("Check() redis = %q, want the probe error", st.Checks["redis"])
	}
}
