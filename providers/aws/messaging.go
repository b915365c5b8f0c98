package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/stacklet-io/stacklet/internal/provider"
)

func (p *Provider) createQueue(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &sqs.CreateQueueInput{
		QueueName: aws.String(stringArg(args, "QueueName")),
	}
	if attrs, ok := args["Attributes"].(map[string]any); ok {
		input.Attributes = toStringMap(attrs)
	}
	if tags, ok := args["tags"].(map[string]any); ok {
		input.Tags = toStringMap(tags)
	}
	out, err := p.sqs.CreateQueue(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) deleteQueue(ctx context.Context, args map[string]any) (map[string]any, error) {
	out, err := p.sqs.DeleteQueue(ctx, &sqs.DeleteQueueInput{
		QueueUrl: aws.String(stringArg(args, "QueueUrl")),
	})
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) createTopic(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &sns.CreateTopicInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.sns.CreateTopic(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) deleteTopic(ctx context.Context, args map[string]any) (map[string]any, error) {
	out, err := p.sns.DeleteTopic(ctx, &sns.DeleteTopicInput{
		TopicArn: aws.String(stringArg(args, "TopicArn")),
	})
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) subscribe(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &sns.SubscribeInput{
		TopicArn:              aws.String(stringArg(args, "TopicArn")),
		Protocol:              aws.String(stringArg(args, "Protocol")),
		Endpoint:              aws.String(stringArg(args, "Endpoint")),
		ReturnSubscriptionArn: true,
	}
	if attrs, ok := args["Attributes"].(map[string]any); ok {
		input.Attributes = toStringMap(attrs)
	}
	out, err := p.sns.Subscribe(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) queueState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	urlOut, err := p.sqs.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(req.Name),
	})
	if err != nil {
		return nil, err
	}
	url := aws.ToString(urlOut.QueueUrl)

	details := map[string]any{
		"PhysicalResourceId": url,
		"QueueUrl":           url,
		"QueueName":          req.Name,
	}
	attrOut, err := p.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(url),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameAll},
	})
	if err == nil {
		if arn, ok := attrOut.Attributes["QueueArn"]; ok {
			details["Arn"] = arn
			details["QueueArn"] = arn
		}
	}
	return details, nil
}

func (p *Provider) topicState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	arn, err := p.findTopicArn(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"PhysicalResourceId": arn,
		"TopicArn":           arn,
		"TopicName":          req.Name,
	}, nil
}

func (p *Provider) findTopicArn(ctx context.Context, name string) (string, error) {
	var next *string
	for {
		out, err := p.sns.ListTopics(ctx, &sns.ListTopicsInput{NextToken: next})
		if err != nil {
			return "", err
		}
		for _, topic := range out.Topics {
			arn := aws.ToString(topic.TopicArn)
			if strings.HasSuffix(arn, ":"+name) {
				return arn, nil
			}
		}
		if out.NextToken == nil {
			return "", provider.ErrNotFound
		}
		next = out.NextToken
	}
}

func (p *Provider) subscriptionState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	topicArn, err := resolveString(req, req.Properties["TopicArn"])
	if err != nil {
		return nil, err
	}
	endpoint, err := resolveString(req, req.Properties["Endpoint"])
	if err != nil {
		return nil, err
	}
	protocol, _ := req.Properties["Protocol"].(string)
	if topicArn == "" {
		return nil, provider.ErrNotFound
	}

	out, err := p.sns.ListSubscriptionsByTopic(ctx, &sns.ListSubscriptionsByTopicInput{
		TopicArn: aws.String(topicArn),
	})
	if err != nil {
		return nil, err
	}
	for _, sub := range out.Subscriptions {
		if aws.ToString(sub.Protocol) == protocol && aws.ToString(sub.Endpoint) == endpoint {
			return map[string]any{
				"PhysicalResourceId": aws.ToString(sub.SubscriptionArn),
				"SubscriptionArn":    aws.ToString(sub.SubscriptionArn),
				"TopicArn":           topicArn,
			}, nil
		}
	}
	return nil, provider.ErrNotFound
}

func toStringMap(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
