package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServer_Endpoints(t *testing.T) {
	ready := false
	srv := NewServer(":0", func() bool { return ready })
	h := srv.Handler()

	tests := []struct {
		name  string
		path  string
		ready bool
		want  int
	}{
		{"healthz", "/healthz", false, http.StatusOK},
		{"readyz before start", "/readyz", false, http.StatusServiceUnavailable},
		{"readyz after start", "/readyz", true, http.StatusOK},
		{"metrics", "/metrics", true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready = tt.ready
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}

	rec := httptest.NewRecorder()
	NewServer(":0", nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("nil ready func: readyz = %d, want 200", rec.Code)
	}
}
