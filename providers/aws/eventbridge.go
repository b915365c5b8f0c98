package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"

	"github.com/stacklet-io/stacklet/internal/provider"
)

func (p *Provider) putRule(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &eventbridge.PutRuleInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.eventbridge.PutRule(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) putTargets(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &eventbridge.PutTargetsInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	if len(input.Targets) == 0 {
		return map[string]any{}, nil
	}
	out, err := p.eventbridge.PutTargets(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) deleteRule(ctx context.Context, args map[string]any) (map[string]any, error) {
	out, err := p.eventbridge.DeleteRule(ctx, &eventbridge.DeleteRuleInput{
		Name: aws.String(stringArg(args, "Name")),
	})
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) ruleState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	out, err := p.eventbridge.DescribeRule(ctx, &eventbridge.DescribeRuleInput{
		Name: aws.String(req.Name),
	})
	if err != nil {
		return nil, err
	}
	details, err := encode(out)
	if err != nil {
		return nil, err
	}
	details["PhysicalResourceId"] = aws.ToString(out.Arn)
	details["RuleArn"] = aws.ToString(out.Arn)
	return details, nil
}
