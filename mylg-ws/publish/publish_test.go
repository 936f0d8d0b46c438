package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/tj/assert"
)

type fakeKinesis struct {
	kinesisiface.KinesisAPI
	inputs []*kinesis.PutRecordInput
	err    error
}

func (f *fakeKinesis) PutRecordWithContext(_ aws.Context, input *kinesis.PutRecordInput, _ ...request.Option) (*kinesis.PutRecordOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, input)
	return &kinesis.PutRecordOutput{SequenceNumber: aws.String("1"), ShardId: aws.String("shardId-000000000000")}, nil
}

func TestSend(t *testing.T) {
	t.Run("wraps payload in an envelope keyed by topic", func(t *testing.T) {
		client := &fakeKinesis{}
		p := New(client, StreamName("dev"))

		err := p.Send(context.Background(), "presence", map[string]interface{}{"userId": "u1", "online": true})
		assert.Nil(t, err)
		assert.Len(t, client.inputs, 1)

		input := client.inputs[0]
		assert.Equal(t, "dev-mylg-ws--presence", aws.StringValue(input.StreamName))
		assert.Equal(t, "presence", aws.StringValue(input.PartitionKey))

		var envelope Envelope
		assert.Nil(t, json.Unmarshal(input.Data, &envelope))
		assert.Equal(t, "presence", envelope.Topic)
		assert.JSONEq(t, `{"userId":"u1","online":true}`, string(envelope.Payload))
	})

	t.Run("surfaces stream errors", func(t *testing.T) {
		p := New(&fakeKinesis{err: fmt.Errorf("ProvisionedThroughputExceededException")}, "s")
		assert.NotNil(t, p.Send(context.Background(), "presence", "x"))
	})

	t.Run("unmarshallable payload", func(t *testing.T) {
		client := &fakeKinesis{}
		p := New(client, "s")
		assert.NotNil(t, p.Send(context.Background(), "presence", make(chan int)))
		assert.Len(t, client.inputs, 0)
	})
}
