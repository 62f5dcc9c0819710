package messaging

import (
	"context"
	"encoding/json"
	"time"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SubjectAttribute carries the event subject on every SNS message so that
// subscriptions can filter on it.
const SubjectAttribute = "subject"

// SNSAPI is the slice of the SNS client the publisher uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher publishes every subject to one topic.
type SNSPublisher struct {
	client   SNSAPI
	topicARN string
	timeout  time.Duration
	logger   logger.Logger
}

func NewSNSPublisher(ctx context.Context, region, topicARN string, log logger.Logger) (*SNSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, apperrors.NewInvalidClientConfigError("aws config: " + err.Error())
	}
	log.Info("sns publisher configured", map[string]interface{}{"region": region, "topic": topicARN})
	return NewSNSPublisherWithClient(sns.NewFromConfig(cfg), topicARN, log), nil
}

func NewSNSPublisherWithClient(client SNSAPI, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN, timeout: 5 * time.Second, logger: log}
}

func (p *SNSPublisher) PublishJSON(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.NewEventPublishFailedError(subject, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(data)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			SubjectAttribute: {DataType: aws.String("String"), StringValue: aws.String(subject)},
		},
	})
	if err != nil {
		return apperrors.NewEventPublishFailedError(subject, err)
	}
	p.logger.Debug("sns message published", map[string]interface{}{
		"subject":   subject,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}
