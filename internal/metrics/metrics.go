// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(statusCode int, duration time.Duration)
	RecordAuthFailure(reason string)
	RecordRecipeCreated()
	RecordImageUploaded(sizeBytes int64)
	RecordOrphanImagesRemoved(count int)
}

// 認証失敗の理由ラベル
const (
	AuthFailureInvalidCredentials = "invalid_credentials"
	AuthFailureInvalidToken       = "invalid_token"
	AuthFailureMissingToken       = "missing_token"
	AuthFailureInactiveUser       = "inactive_user"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests        *prometheus.CounterVec
	httpDuration        prometheus.Histogram
	authFailures        *prometheus.CounterVec
	recipesCreated      prometheus.Counter
	imagesUploaded      prometheus.Counter
	imageUploadBytes    prometheus.Histogram
	orphanImagesRemoved prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipebox_http_requests_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recipebox_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipebox_auth_failures_total",
			Help: "理由別の認証失敗数",
		}, []string{"reason"}),
		recipesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipebox_recipes_created_total",
			Help: "作成されたレシピの合計数",
		}),
		imagesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipebox_images_uploaded_total",
			Help: "アップロードされたレシピ画像の合計数",
		}),
		imageUploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recipebox_image_upload_bytes",
			Help:    "アップロードされた画像のサイズ（バイト）",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 7),
		}),
		orphanImagesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipebox_orphan_images_removed_total",
			Help: "削除された参照のない画像ファイルの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.authFailures,
		c.recipesCreated,
		c.imagesUploaded,
		c.imageUploadBytes,
		c.orphanImagesRemoved,
	)

	return c
}

// RecordHTTPRequest はHTTPレスポンスのステータスコードと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpDuration.Observe(duration.Seconds())
}

// RecordAuthFailure は認証失敗を理由付きで記録する。
func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

// RecordRecipeCreated はレシピ作成を記録する。
func (c *Collector) RecordRecipeCreated() {
	c.recipesCreated.Inc()
}

// RecordImageUploaded は画像アップロードを記録する。
func (c *Collector) RecordImageUploaded(sizeBytes int64) {
	c.imagesUploaded.Inc()
	c.imageUploadBytes.Observe(float64(sizeBytes))
}

// RecordOrphanImagesRemoved は削除された孤立画像の数を記録する。
func (c *Collector) RecordOrphanImagesRemoved(count int) {
	c.orphanImagesRemoved.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(int, time.Duration) {}
func (NopCollector) RecordAuthFailure(string)             {}
func (NopCollector) RecordRecipeCreated()                 {}
func (NopCollector) RecordImageUploaded(int64)            {}
func (NopCollector) RecordOrphanImagesRemoved(int)        {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
