package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/stacklet-io/stacklet/internal/provider"
)

func (p *Provider) createStateMachine(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &sfn.CreateStateMachineInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.sfn.CreateStateMachine(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) deleteStateMachine(ctx context.Context, args map[string]any) (map[string]any, error) {
	out, err := p.sfn.DeleteStateMachine(ctx, &sfn.DeleteStateMachineInput{
		StateMachineArn: aws.String(stringArg(args, "stateMachineArn")),
	})
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) createActivity(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &sfn.CreateActivityInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.sfn.CreateActivity(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) stateMachineState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	var next *string
	for {
		out, err := p.sfn.ListStateMachines(ctx, &sfn.ListStateMachinesInput{NextToken: next})
		if err != nil {
			return nil, err
		}
		for _, sm := range out.StateMachines {
			if aws.ToString(sm.Name) == req.Name {
				return map[string]any{
					"PhysicalResourceId": aws.ToString(sm.StateMachineArn),
					"StateMachineArn":    aws.ToString(sm.StateMachineArn),
					"Name":               aws.ToString(sm.Name),
				}, nil
			}
		}
		if out.NextToken == nil {
			return nil, provider.ErrNotFound
		}
		next = out.NextToken
	}
}

func (p *Provider) activityState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	var next *string
	for {
		out, err := p.sfn.ListActivities(ctx, &sfn.ListActivitiesInput{NextToken: next})
		if err != nil {
			return nil, err
		}
		for _, act := range out.Activities {
			if aws.ToString(act.Name) == req.Name {
				return map[string]any{
					"PhysicalResourceId": aws.ToString(act.ActivityArn),
					"ActivityArn":        aws.ToString(act.ActivityArn),
					"Name":               aws.ToString(act.Name),
				}, nil
			}
		}
		if out.NextToken == nil {
			return nil, provider.ErrNotFound
		}
		next = out.NextToken
	}
}
