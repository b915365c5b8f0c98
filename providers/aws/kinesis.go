package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"

	"github.com/stacklet-io/stacklet/internal/provider"
)

func (p *Provider) createStream(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &kinesis.CreateStreamInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.kinesis.CreateStream(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) deleteStream(ctx context.Context, args map[string]any) (map[string]any, error) {
	out, err := p.kinesis.DeleteStream(ctx, &kinesis.DeleteStreamInput{
		StreamName: aws.String(stringArg(args, "StreamName")),
	})
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) streamState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	out, err := p.kinesis.DescribeStream(ctx, &kinesis.DescribeStreamInput{
		StreamName: aws.String(req.Name),
	})
	if err != nil {
		return nil, err
	}
	details, err := encode(out.StreamDescription)
	if err != nil {
		return nil, err
	}
	details["PhysicalResourceId"] = aws.ToString(out.StreamDescription.StreamName)
	details["Arn"] = aws.ToString(out.StreamDescription.StreamARN)
	return details, nil
}
