package aws

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// HTTP metric names
const (
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"
)

// MetricsAPI is the CloudWatch call the client makes.
type MetricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsClient publishes custom metrics under one namespace. A nil client accepts
// every call and sends nothing.
type MetricsClient struct {
	api       MetricsAPI
	namespace string
	now       func() time.Time
}

// NewMetricsClient returns nil when disabled so callers can hold it unconditionally.
func NewMetricsClient(cfg sdkaws.Config, namespace string, enabled bool) *MetricsClient {
	if !enabled {
		return nil
	}
	return NewMetricsClientFromAPI(cloudwatch.NewFromConfig(cfg), namespace)
}

func NewMetricsClientFromAPI(api MetricsAPI, namespace string) *MetricsClient {
	if namespace == "" {
		namespace = "LicenseService"
	}
	return &MetricsClient{api: api, namespace: namespace, now: time.Now}
}

func (m *MetricsClient) IsEnabled() bool {
	return m != nil
}

// datum stamps one data point. Dimensions are sorted by name so the same set always
// lands on the same CloudWatch series.
func (m *MetricsClient) datum(name string, value float64, unit types.StandardUnit, dimensions map[string]string) types.MetricDatum {
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dims := make([]types.Dimension, 0, len(keys))
	for _, k := range keys {
		dims = append(dims, types.Dimension{Name: sdkaws.String(k), Value: sdkaws.String(dimensions[k])})
	}
	return types.MetricDatum{
		MetricName: sdkaws.String(name),
		Value:      sdkaws.Float64(value),
		Unit:       unit,
		Timestamp:  sdkaws.Time(m.now()),
		Dimensions: dims,
	}
}

func (m *MetricsClient) put(ctx context.Context, data ...types.MetricDatum) error {
	if m == nil || len(data) == 0 {
		return nil
	}
	if _, err := m.api.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  sdkaws.String(m.namespace),
		MetricData: data,
	}); err != nil {
		return fmt.Errorf("put %d metric(s) to %s: %w", len(data), m.namespace, err)
	}
	return nil
}

// RecordCount adds one to metricName.
func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	if m == nil {
		return nil
	}
	return m.put(ctx, m.datum(metricName, 1, types.StandardUnitCount, dimensions))
}

// RecordLatency records d in milliseconds.
func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, d time.Duration, dimensions map[string]string) error {
	if m == nil {
		return nil
	}
	return m.put(ctx, m.datum(metricName, float64(d.Milliseconds()), types.StandardUnitMilliseconds, dimensions))
}

// RequestSample is one served HTTP request.
type RequestSample struct {
	Service string
	Method  string
	Route   string
	Status  int
	Latency time.Duration
}

// StatusClass buckets a status code as "2xx".."5xx".
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// RecordRequest sends the request count, its latency and, for 4xx or 5xx responses,
// an error count in a single PutMetricData call.
func (m *MetricsClient) RecordRequest(ctx context.Context, s RequestSample) error {
	if m == nil {
		return nil
	}
	dims := map[string]string{
		"Service": s.Service,
		"Method":  s.Method,
		"Path":    s.Route,
		"Status":  StatusClass(s.Status),
	}
	data := []types.MetricDatum{
		m.datum(MetricHTTPRequests, 1, types.StandardUnitCount, dims),
		m.datum(MetricHTTPLatency, float64(s.Latency.Milliseconds()), types.StandardUnitMilliseconds, dims),
	}
	switch {
	case s.Status >= 500:
		data = append(data, m.datum(MetricHTTP5xx, 1, types.StandardUnitCount, dims))
	case s.Status >= 400:
		data = append(data, m.datum(MetricHTTP4xx, 1, types.StandardUnitCount, dims))
	}
	return m.put(ctx, data...)
}
