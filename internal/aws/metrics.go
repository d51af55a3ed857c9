package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/web-kovcheg/storefront/internal/logging"
)

// Metrics publishes counters to CloudWatch. A nil *Metrics is a no-op.
type Metrics struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewMetrics returns a Metrics bound to namespace. It returns nil when no
// client is supplied so callers may use it unconditionally.
func NewMetrics(client CloudWatchAPI, namespace string) *Metrics {
	if client == nil {
		return nil
	}
	if namespace == "" {
		namespace = "Storefront"
	}
	return &Metrics{client: client, namespace: namespace, nowFunc: time.Now}
}

// Count records a single occurrence of name. Failures are logged and dropped.
func (m *Metrics) Count(ctx context.Context, name string, dimensions map[string]string) {
	if m == nil {
		return
	}
	if err := m.put(ctx, name, 1, dimensions); err != nil {
		logging.FromContext(ctx).Warn("metric publish failed", zap.String("metric", name), zap.Error(err))
	}
}

func (m *Metrics) put(ctx context.Context, name string, value float64, dimensions map[string]string) error {
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dims := make([]cwtypes.Dimension, 0, len(keys))
	for _, k := range keys {
		dims = append(dims, cwtypes.Dimension{Name: awsString(k), Value: awsString(dimensions[k])})
	}

	ts := m.nowFunc()
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &m.namespace,
		MetricData: []cwtypes.MetricDatum{{
			MetricName: &name,
			Dimensions: dims,
			Timestamp:  &ts,
			Unit:       cwtypes.StandardUnitCount,
			Value:      &value,
		}},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
