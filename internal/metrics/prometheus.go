// Package metrics answers the metrics action from a Prometheus server that
// scrapes container metrics for platform resources.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/saturn-platform/opsclaw/internal/executor"
	"github.com/saturn-platform/opsclaw/internal/logging"
)

type series struct {
	key   string
	label string
	query string
}

// Containers are named after the resource UUID, so every selector matches
// on the container name prefix.
var resourceSeries = []series{
	{key: "cpu_cores", label: "cpu", query: `sum(rate(container_cpu_usage_seconds_total{name=~%s}[%s]))`},
	{key: "memory_bytes", label: "memory", query: `sum(avg_over_time(container_memory_working_set_bytes{name=~%s}[%s]))`},
	{key: "restarts", label: "restarts", query: `sum(changes(container_start_time_seconds{name=~%s}[%s]))`},
}

// Source queries Prometheus for per-resource usage.
type Source struct {
	api v1.API
	now func() time.Time
}

// New builds a Source for the Prometheus server at address. A nil rt uses
// the client's default transport.
func New(address string, rt http.RoundTripper) (*Source, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.New("prometheus address is required")
	}
	client, err := api.NewClient(api.Config{Address: address, RoundTripper: rt})
	if err != nil {
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}
	return &Source{api: v1.NewAPI(client), now: time.Now}, nil
}

// ResourceMetrics reports CPU, memory and restarts for r over the last days.
func (s *Source) ResourceMetrics(ctx context.Context, r executor.Resource, days int) (executor.Outcome, error) {
	if days <= 0 {
		days = executor.DefaultPeriodDays
	}
	selector := containerSelector(r)
	window := strconv.Itoa(days) + "d"
	at := s.now()

	data := make(map[string]any, len(resourceSeries))
	parts := make([]string, 0, len(resourceSeries))
	for _, sr := range resourceSeries {
		query := fmt.Sprintf(sr.query, selector, window)
		value, warnings, err := s.api.Query(ctx, query, at)
		if err != nil {
			return executor.Outcome{}, fmt.Errorf("query %s for %s: %w", sr.key, r.Name, err)
		}
		for _, w := range warnings {
			logging.Logger().Warn("prometheus warning", "query", sr.key, "resource", r.Name, "warning", w)
		}

		v, ok := sumVector(value)
		if !ok {
			parts = append(parts, sr.label+" n/a")
			continue
		}
		data[sr.key] = v
		parts = append(parts, sr.label+" "+formatSeries(sr.key, v))
	}

	return executor.Outcome{
		Message: fmt.Sprintf("%s over %dd: %s.", r.Name, days, strings.Join(parts, ", ")),
		Data:    data,
	}, nil
}

func containerSelector(r executor.Resource) string {
	id := r.UUID
	if id == "" {
		id = r.Name
	}
	return strconv.Quote(regexp.QuoteMeta(id) + ".*")
}

func sumVector(v model.Value) (float64, bool) {
	vec, ok := v.(model.Vector)
	if !ok || len(vec) == 0 {
		return 0, false
	}
	var total float64
	for _, sample := range vec {
		total += float64(sample.Value)
	}
	return total, true
}

func formatSeries(key string, v float64) string {
	switch key {
	case "memory_bytes":
		return fmt.Sprintf("%.1f MiB", v/(1<<20))
	case "restarts":
		return strconv.FormatFloat(v, 'f', 0, 64)
	default:
		return fmt.Sprintf("%.3f cores", v)
	}
}
