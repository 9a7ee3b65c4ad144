package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestServer_Readyz(t *testing.T) {
	tests := []struct {
		name     string
		check    ReadinessChecker
		wantCode int
		wantBody string
	}{
		{"без проверки", nil, http.StatusOK, `{"status":"ready"}`},
		{"зависимости доступны", func(context.Context) error { return nil }, http.StatusOK, `{"status":"ready"}`},
		{"БД недоступна", func(context.Context) error { return errors.New("database ping: refused") }, http.StatusServiceUnavailable, `{"status":"not_ready"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.check != nil {
				opts = append(opts, WithReadinessCheck(tt.check))
			}
			srv := NewServer(":0", "test", opts...)

			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestRecordTransition(t *testing.T) {
	before := testutil.ToFloat64(TransitionsTotal.WithLabelValues("order", "shipped", "applied"))
	RecordTransition("order", "shipped", "applied")
	after := testutil.ToFloat64(TransitionsTotal.WithLabelValues("order", "shipped", "applied"))
	assert.Equal(t, before+1, after)
}
