package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestCollector_DomainCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProposalSubmitted()
	c.RecordProposalSubmitted()
	c.RecordMessageSent("user")
	c.RecordMessageSent("company")
	c.RecordMessageSent("company")
	c.RecordMessageRead()
	c.RecordRoomCreated()
	c.RecordLogin(LoginSuccess)
	c.RecordLogin(LoginFailure)
	c.RecordLogin(LoginFailure)
	c.RecordSessionsSwept(5)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"proposals_submitted", testutil.ToFloat64(c.proposalsSubmitted), 2},
		{"messages_sent_user", testutil.ToFloat64(c.messagesSent.WithLabelValues("user")), 1},
		{"messages_sent_company", testutil.ToFloat64(c.messagesSent.WithLabelValues("company")), 2},
		{"messages_read", testutil.ToFloat64(c.messagesRead), 1},
		{"rooms_created", testutil.ToFloat64(c.roomsCreated), 1},
		{"logins_success", testutil.ToFloat64(c.logins.WithLabelValues(LoginSuccess)), 1},
		{"logins_failure", testutil.ToFloat64(c.logins.WithLabelValues(LoginFailure)), 2},
		{"sessions_swept", testutil.ToFloat64(c.sessionsSwept), 5},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestNewHTTPMiddleware_RecordsStatusAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	handler := NewHTTPMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/", "/missing", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("200")); got != 1 {
		t.Errorf("status 200 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("404")); got != 2 {
		t.Errorf("status 404 = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(c.requestLatency); got != 1 {
		t.Errorf("latency series = %d, want 1", got)
	}
}

// TestHandler_ServesMetrics はスクレイプ用ハンドラーがメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordProposalSubmitted()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "sponsorlink_proposals_submitted_total 1") {
		t.Error("response should contain sponsorlink_proposals_submitted_total")
	}
}

func TestNopCollector_DoesNotPanic(t *testing.T) {
	var c MetricsCollector = NopCollector{}
	c.RecordProposalSubmitted()
	c.RecordMessageSent("user")
	c.RecordMessageRead()
	c.RecordRoomCreated()
	c.RecordLogin(LoginSuccess)
	c.RecordSessionsSwept(1)
	c.RecordHTTPStatus(200)
	c.RecordRequestLatency(time.Millisecond)
}
