package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailrelay/backend/internal/monitoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(router http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(router, http.MethodGet, "/", "", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestRecoveryHandler(t *testing.T) {
	router := gin.New()
	router.Use(RecoveryHandler(zap.NewNop()))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := perform(router, http.MethodGet, "/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":500`)
}

func TestValidateContentType(t *testing.T) {
	router := gin.New()
	router.Use(ValidateContentType("application/json"))
	router.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name   string
		method string
		header map[string]string
		want   int
	}{
		{"JSON 请求放行", http.MethodPost, map[string]string{"Content-Type": "application/json; charset=utf-8"}, http.StatusOK},
		{"缺少 Content-Type", http.MethodPost, nil, http.StatusBadRequest},
		{"不支持的类型", http.MethodPost, map[string]string{"Content-Type": "text/plain"}, http.StatusUnsupportedMediaType},
		{"GET 不检查", http.MethodGet, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := ""
			if tt.method == http.MethodPost {
				body = "{}"
			}
			w := perform(router, tt.method, "/", body, tt.header)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestBodySizeLimit(t *testing.T) {
	router := gin.New()
	router.Use(BodySizeLimit(16))
	router.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(router, http.MethodPost, "/", `{"a":1}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "16", w.Header().Get("X-Max-Body-Size"))

	w = perform(router, http.MethodPost, "/", strings.Repeat("x", 64), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRateLimiter(t *testing.T) {
	metrics := monitoring.NewMetrics()
	rl := NewRateLimiter(1, 2, zap.NewNop())
	rl.SetMetrics(metrics)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	router := gin.New()
	router.POST("/simulate", rl.Middleware("simulate"), func(c *gin.Context) { c.Status(http.StatusOK) })

	// 桶容量为 2
	assert.Equal(t, http.StatusOK, perform(router, http.MethodPost, "/simulate", "", nil).Code)
	assert.Equal(t, http.StatusOK, perform(router, http.MethodPost, "/simulate", "", nil).Code)

	w := perform(router, http.MethodPost, "/simulate", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// 一秒后补充一个令牌
	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, perform(router, http.MethodPost, "/simulate", "", nil).Code)

	// 不同客户端互不影响
	assert.True(t, rl.Allow("10.0.0.9"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, 0, nil)
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("1.2.3.4"))
	}
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	rl := NewRateLimiter(5, 5, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	assert.Len(t, rl.clients, 2)

	now = now.Add(2 * limiterIdleTTL)
	rl.Allow("c")
	assert.Len(t, rl.clients, 1)
}

func TestMonitoringMiddleware(t *testing.T) {
	metrics := monitoring.NewMetrics()
	mm := NewMonitoringMiddleware(metrics, zap.NewNop())

	router := gin.New()
	router.Use(mm.PanicRecovery(), mm.HTTPMetrics())
	router.GET("/v1/relays/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/v1/relays/abc", "", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, perform(router, http.MethodGet, "/panic", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, perform(router, http.MethodGet, "/nowhere", "", nil).Code)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)

	endpoints := map[string]bool{}
	for _, f := range families {
		if f.GetName() != "mailrelay_http_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "endpoint" {
					endpoints[l.GetValue()] = true
				}
			}
		}
	}
	assert.True(t, endpoints["/v1/relays/:id"])
	assert.True(t, endpoints["unmatched"])
}
