package telemetry

import (
	"net/http/httptest"
	"testing"
	"time"

	"minimart/pkg/marketdata"
)

func TestCollectPublishesFeedStatistics(t *testing.T) {
	gen := marketdata.NewGenerator(4, marketdata.GeneratorConfig{UpdateInterval: time.Millisecond}, nil)
	store := marketdata.NewStore(4)
	feed := marketdata.NewFeed(gen, store, marketdata.FeedConfig{})
	feed.Subscribe(marketdata.NewSecurityId("AAPL"))

	exp := New("minimart_test", feed)
	exp.Collect()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	exp.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("metrics handler status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !contains(body, "minimart_test_subscribed_securities") {
		t.Error("expected subscribed_securities metric in output")
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
