package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Attributes that double as FIFO group and deduplication ids.
const (
	GroupIDAttribute = "order_id"
	DedupIDAttribute = "idempotency_key"
)

// Publisher sends JSON messages to one SQS queue. Queues whose URL ends in
// ".fifo" get MessageGroupId and MessageDeduplicationId from the attributes.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
	fifo     bool
}

// NewPublisher returns a Publisher bound to queueURL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{SQS: sqsClient, QueueURL: queueURL, fifo: strings.HasSuffix(queueURL, ".fifo")}
}

// Publish marshals payload and sends it. Empty attribute values are dropped.
func (p *Publisher) Publish(ctx context.Context, payload any, attributes map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	input := &sqs.SendMessageInput{QueueUrl: &p.QueueURL, MessageBody: awsString(string(body))}

	for k, v := range attributes {
		if v == "" {
			continue
		}
		if input.MessageAttributes == nil {
			input.MessageAttributes = map[string]sqstypes.MessageAttributeValue{}
		}
		input.MessageAttributes[k] = sqstypes.MessageAttributeValue{DataType: awsString("String"), StringValue: awsString(v)}
	}
	if p.fifo {
		if g := attributes[GroupIDAttribute]; g != "" {
			input.MessageGroupId = awsString(g)
		}
		if d := attributes[DedupIDAttribute]; d != "" {
			input.MessageDeduplicationId = awsString(d)
		}
	}

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
