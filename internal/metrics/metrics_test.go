package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	c := New()
	c.SetBalance("eth-mainnet", "ETH", 1.5)
	c.SetBalance("eth-mainnet", "ETH", 2.25)
	c.CountTransfer("eth-mainnet", "ETH", "sent")
	c.CountTransfer("eth-mainnet", "ETH", "sent")
	c.CountTransfer("eth-mainnet", "ETH", "received")
	c.SetHeight("eth-mainnet", 19_000_000)
	c.CountRequest("eth-mainnet", "transfers", nil)
	c.CountRequest("eth-mainnet", "transfers", errors.New("timeout"))
	c.ObserveSync("eth-mainnet", 300*time.Millisecond)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"balance", testutil.ToFloat64(c.balance.WithLabelValues("eth-mainnet", "ETH")), 2.25},
		{"sent", testutil.ToFloat64(c.transfers.WithLabelValues("eth-mainnet", "ETH", "sent")), 2},
		{"received", testutil.ToFloat64(c.transfers.WithLabelValues("eth-mainnet", "ETH", "received")), 1},
		{"height", testutil.ToFloat64(c.height.WithLabelValues("eth-mainnet")), 19_000_000},
		{"ok", testutil.ToFloat64(c.requests.WithLabelValues("eth-mainnet", "transfers", "ok")), 1},
		{"error", testutil.ToFloat64(c.requests.WithLabelValues("eth-mainnet", "transfers", "error")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if n := testutil.CollectAndCount(c.syncDur); n != 1 {
		t.Errorf("sync histogram series = %d, want 1", n)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.SetHeight("xtz-mainnet", 42)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `walletkit_network_height{network="xtz-mainnet"} 42`) {
		t.Fatalf("metrics output missing height:\n%s", body)
	}
}
