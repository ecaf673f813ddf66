package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestAdminRequestsTagsStateAndFoldsUnmatchedPaths(t *testing.T) {
	gin.SetMode(gin.ReleaseMode)
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	r := gin.New()
	r.Use(AdminRequests(logger, func() string { return "processing" }))
	r.GET("/status", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", UnmatchedRoute, "404"))
	for _, path := range []string{"/status", "/nope/1", "/nope/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", UnmatchedRoute, "404")); got != before+2 {
		t.Fatalf("unexpected unmatched count: %v", got)
	}
	out := buf.String()
	if strings.Count(out, `"bridge_state":"processing"`) != 3 {
		t.Fatalf("missing bridge state: %s", out)
	}
	if !strings.Contains(out, `"route":"/status"`) || !strings.Contains(out, `"path":"/nope/2"`) {
		t.Fatalf("unexpected log lines: %s", out)
	}
	if strings.Contains(out, `"path":"/status"`) {
		t.Fatalf("matched route should not repeat the raw path: %s", out)
	}
}
