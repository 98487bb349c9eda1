package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Fatal("Registry should not be nil")
	}
	if prometheus.Registerer(Registry) == prometheus.DefaultRegisterer {
		t.Error("Registry should be isolated from the default registerer")
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/developer/v2/cycle", "/developer/v2/cycle"},
		{"/developer/v2/cycle/101/recovery", "/developer/v2/cycle/{id}/recovery"},
		{"/developer/v2/cycle/101", "/developer/v2/cycle/{id}"},
		{"/a/1/2/b", "/a/{id}/{id}/b"},
		{"/developer/v2/user/profile/basic", "/developer/v2/user/profile/basic"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := EndpointLabel(tt.path); got != tt.expected {
				t.Errorf("EndpointLabel(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestWriteTextfile(t *testing.T) {
	counter := promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "whoop_metrics_test_total",
		Help: "Counter used by TestWriteTextfile",
	})
	counter.Add(3)

	path := filepath.Join(t.TempDir(), "whoop.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "whoop_metrics_test_total 3") {
		t.Errorf("textfile missing counter, got:\n%s", data)
	}
}
