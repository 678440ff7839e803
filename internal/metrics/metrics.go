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
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordProposalSubmitted()
	RecordMessageSent(senderType string)
	RecordMessageRead()
	RecordRoomCreated()
	RecordLogin(result string)
	RecordSessionsSwept(count int64)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// ログイン結果のラベル値
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	proposalsSubmitted prometheus.Counter
	messagesSent       *prometheus.CounterVec
	messagesRead       prometheus.Counter
	roomsCreated       prometheus.Counter
	logins             *prometheus.CounterVec
	sessionsSwept      prometheus.Counter
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		proposalsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_proposals_submitted_total",
			Help: "提出された協賛申請の合計数",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sponsorlink_chat_messages_sent_total",
			Help: "送信者種別ごとのチャットメッセージ送信数",
		}, []string{"sender_type"}),
		messagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_chat_messages_read_total",
			Help: "未読から既読に変わったメッセージの合計数",
		}),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_chat_rooms_created_total",
			Help: "新規作成されたチャットルームの合計数",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sponsorlink_logins_total",
			Help: "結果ごとのログイン試行数",
		}, []string{"result"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sponsorlink_sessions_swept_total",
			Help: "一括削除された期限切れセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sponsorlink_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sponsorlink_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.proposalsSubmitted,
		c.messagesSent,
		c.messagesRead,
		c.roomsCreated,
		c.logins,
		c.sessionsSwept,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordProposalSubmitted は申請の提出を記録する。
func (c *Collector) RecordProposalSubmitted() {
	c.proposalsSubmitted.Inc()
}

// RecordMessageSent はメッセージ送信を記録する。
func (c *Collector) RecordMessageSent(senderType string) {
	c.messagesSent.WithLabelValues(senderType).Inc()
}

// RecordMessageRead はメッセージの既読化を記録する。
func (c *Collector) RecordMessageRead() {
	c.messagesRead.Inc()
}

// RecordRoomCreated はチャットルームの新規作成を記録する。
func (c *Collector) RecordRoomCreated() {
	c.roomsCreated.Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordSessionsSwept は一括削除したセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type NopCollector struct{}

func (NopCollector) RecordProposalSubmitted() {}
func (NopCollector) RecordMessageSent(string) {}
func (NopCollector) RecordMessageRead() {}
func (NopCollector) RecordRoomCreated() {}
func (NopCollector) RecordLogin(string) {}
func (NopCollector) RecordSessionsSwept(int64) {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordRequestLatency(time.Duration) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NewHTTPMiddleware はレスポンスのステータスコードと処理時間を記録するミドルウェアを返す。
func NewHTTPMiddleware(c MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			c.RecordHTTPStatus(sw.status)
			c.RecordRequestLatency(time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
