package testutil

import (
	"net/http"
	"net/url"
	"testing"
)

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
}

func TestLocalRequest(t *testing.T) {
	t.Parallel()
	req := LocalRequest(http.MethodGet, "/debug/", nil)
	if req.RemoteAddr != "127.0.0.1:12345" {
		t.Errorf("RemoteAddr = %q", req.RemoteAddr)
	}
}

func TestFormRequestAndServe(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"enabled":"` + r.FormValue("enabled") + `"}`))
	})
	rec := Serve(h, FormRequest("/api/scan", url.Values{"enabled": {"true"}}))

	var out map[string]string
	DecodeJSON(t, rec, &out)
	if out["enabled"] != "true" {
		t.Errorf("enabled = %q, want true", out["enabled"])
	}
}
