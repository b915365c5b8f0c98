package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/stacklet-io/stacklet/internal/provider"
)

func (p *Provider) createRole(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &iam.CreateRoleInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.iam.CreateRole(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) deleteRole(ctx context.Context, args map[string]any) (map[string]any, error) {
	out, err := p.iam.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: aws.String(stringArg(args, "RoleName")),
	})
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) roleState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	out, err := p.iam.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(req.Name),
	})
	if err != nil {
		return nil, err
	}
	details, err := encode(out.Role)
	if err != nil {
		return nil, err
	}
	details["PhysicalResourceId"] = aws.ToString(out.Role.RoleName)
	return details, nil
}
