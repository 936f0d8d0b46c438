package mylgcli

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
	"github.com/tj/assert"
)

type fakeCloudWatch struct {
	cloudwatchiface.CloudWatchAPI
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricDataWithContext(_ aws.Context, input *cloudwatch.PutMetricDataInput, _ ...request.Option) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, input)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetrics(t *testing.T) {
	service := Service{Name: "presence-ws", Version: "abc123"}

	t.Run("event", func(t *testing.T) {
		cw := &fakeCloudWatch{}
		m := NewMetrics(service, cw)
		m.Event(context.Background(), ConnectMetric, Operation("connect"))

		assert.Len(t, cw.inputs, 1)
		input := cw.inputs[0]
		assert.Equal(t, metricsNamespace, aws.StringValue(input.Namespace))
		datum := input.MetricData[0]
		assert.Equal(t, string(ConnectMetric), aws.StringValue(datum.MetricName))
		assert.Equal(t, cloudwatch.StandardUnitCount, aws.StringValue(datum.Unit))
		assert.EqualValues(t, 1, aws.Float64Value(datum.Value))

		dims := map[string]string{}
		for _, d := range datum.Dimensions {
			dims[aws.StringValue(d.Name)] = aws.StringValue(d.Value)
		}
		assert.Equal(t, "connect", dims[string(OperationNameDimension)])
		assert.Equal(t, "presence-ws", dims[string(ServiceNameDimension)])
		assert.Equal(t, "abc123", dims[string(ServiceVersionDimension)])
	})

	t.Run("timing", func(t *testing.T) {
		cw := &fakeCloudWatch{}
		m := NewMetrics(service, cw)
		m.Timing(context.Background(), ResponseTimeMetric, time.Now().Add(-time.Second))

		assert.Len(t, cw.inputs, 1)
		datum := cw.inputs[0].MetricData[0]
		assert.Equal(t, cloudwatch.StandardUnitMilliseconds, aws.StringValue(datum.Unit))
		assert.True(t, aws.Float64Value(datum.Value) >= 1000)
	})

	t.Run("nil metrics is a no-op", func(t *testing.T) {
		var m *Metrics
		m.Event(context.Background(), ConnectMetric)
		m.Gauge(context.Background(), OnlineUsersMetric, 3)
	})

	t.Run("empty dimension values are dropped", func(t *testing.T) {
		dims := mapToDimensions(map[DimensionName]string{OperationNameDimension: ""})
		assert.Len(t, dims, 0)
	})
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "TABLE_NAME", EnvVar("table-name"))
	assert.Equal(t, "WS_ENDPOINT", EnvVar("ws-endpoint"))
}
