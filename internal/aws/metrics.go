package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics publishes count metrics to CloudWatch. A nil *Metrics discards everything.
type Metrics struct {
	CloudWatch CloudWatchAPI
	Namespace  string
	nowFunc    func() time.Time
}

// NewMetrics returns a Metrics publisher for namespace.
func NewMetrics(client CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{CloudWatch: client, Namespace: namespace, nowFunc: time.Now}
}

// Counts publishes each name -> value pair as a Count datum in one call.
func (m *Metrics) Counts(ctx context.Context, values map[string]float64) error {
	if m == nil || m.CloudWatch == nil || len(values) == 0 {
		return nil
	}
	now := m.nowFunc().UTC()
	data := make([]cwtypes.MetricDatum, 0, len(values))
	for name, v := range values {
		data = append(data, cwtypes.MetricDatum{
			MetricName: awsString(name),
			Value:      &v,
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  &now,
		})
	}
	_, err := m.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &m.Namespace,
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
