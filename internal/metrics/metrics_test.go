package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily はレジストリから指定名のメトリクスファミリーを取得する。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordHTTPRequest_IncrementsCounterWithLabel はステータスコード別にカウントされることを検証する。
func TestRecordHTTPRequest_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(200, 10*time.Millisecond)
	c.RecordHTTPRequest(200, 20*time.Millisecond)
	c.RecordHTTPRequest(404, 5*time.Millisecond)

	mf := findMetricFamily(t, reg, "recipebox_http_requests_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status_code" {
				got[lp.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if got["200"] != 2 {
		t.Errorf("status_code=200 count = %v, want 2", got["200"])
	}
	if got["404"] != 1 {
		t.Errorf("status_code=404 count = %v, want 1", got["404"])
	}

	hist := findMetricFamily(t, reg, "recipebox_http_request_duration_seconds")
	if n := hist.GetMetric()[0].GetHistogram().GetSampleCount(); n != 3 {
		t.Errorf("duration sample count = %d, want 3", n)
	}
}

// TestRecordAuthFailure_IncrementsCounterWithReason は理由ラベル付きで記録されることを検証する。
func TestRecordAuthFailure_IncrementsCounterWithReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthFailure(AuthFailureInvalidCredentials)
	c.RecordAuthFailure(AuthFailureInvalidCredentials)
	c.RecordAuthFailure(AuthFailureMissingToken)

	mf := findMetricFamily(t, reg, "recipebox_auth_failures_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label sets, got %d", len(mf.GetMetric()))
	}
}

// TestRecordRecipeCreated_IncrementsCounter はレシピ作成カウンタが増加することを検証する。
func TestRecordRecipeCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRecipeCreated()

	mf := findMetricFamily(t, reg, "recipebox_recipes_created_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("recipes_created_total = %v, want 1", val)
	}
}

// TestRecordImageUploaded_RecordsCountAndSize は画像アップロードの件数とサイズを記録することを検証する。
func TestRecordImageUploaded_RecordsCountAndSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordImageUploaded(2048)
	c.RecordImageUploaded(4096)

	mf := findMetricFamily(t, reg, "recipebox_images_uploaded_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("images_uploaded_total = %v, want 2", val)
	}

	hist := findMetricFamily(t, reg, "recipebox_image_upload_bytes")
	h := hist.GetMetric()[0].GetHistogram()
	if h.GetSampleSum() != 6144 {
		t.Errorf("image_upload_bytes sum = %v, want 6144", h.GetSampleSum())
	}
}

// TestRecordOrphanImagesRemoved_AddsCount は孤立画像の削除数を加算することを検証する。
func TestRecordOrphanImagesRemoved_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOrphanImagesRemoved(3)
	c.RecordOrphanImagesRemoved(0)

	mf := findMetricFamily(t, reg, "recipebox_orphan_images_removed_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 3 {
		t.Errorf("orphan_images_removed_total = %v, want 3", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat はPrometheusテキスト形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRecipeCreated()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "recipebox_recipes_created_total 1") {
		t.Errorf("response should contain recipes_created_total, got:\n%s", body)
	}
}

// TestMiddleware_RecordsStatusCode はミドルウェアが実際のステータスコードを記録することを検証する。
func TestMiddleware_RecordsStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	handler := Middleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/recipe/tags", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	mf := findMetricFamily(t, reg, "recipebox_http_requests_total")
	m := mf.GetMetric()[0]
	if m.GetLabel()[0].GetValue() != "201" {
		t.Errorf("status_code label = %q, want %q", m.GetLabel()[0].GetValue(), "201")
	}
}

// TestMiddleware_DefaultStatusOK はWriteHeaderを呼ばない場合200として記録することを検証する。
func TestMiddleware_DefaultStatusOK(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	handler := Middleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	mf := findMetricFamily(t, reg, "recipebox_http_requests_total")
	if got := mf.GetMetric()[0].GetLabel()[0].GetValue(); got != "200" {
		t.Errorf("status_code label = %q, want %q", got, "200")
	}
}

func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
	var _ MetricsCollector = NopCollector{}
}

// TestMultipleCollectors_IndependentRegistries は別レジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()

	c1 := NewCollector(reg1)
	_ = NewCollector(reg2)

	c1.RecordRecipeCreated()

	mf := findMetricFamily(t, reg2, "recipebox_recipes_created_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 0 {
		t.Errorf("reg2 recipes_created_total = %v, want 0", val)
	}
}
