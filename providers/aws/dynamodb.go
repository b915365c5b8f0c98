package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/stacklet-io/stacklet/internal/provider"
)

func (p *Provider) createTable(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &dynamodb.CreateTableInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.dynamodb.CreateTable(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) deleteTable(ctx context.Context, args map[string]any) (map[string]any, error) {
	out, err := p.dynamodb.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(stringArg(args, "TableName")),
	})
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) tableState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	out, err := p.dynamodb.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(req.Name),
	})
	if err != nil {
		return nil, err
	}
	details, err := encode(out.Table)
	if err != nil {
		return nil, err
	}
	details["PhysicalResourceId"] = aws.ToString(out.Table.TableName)
	if out.Table.LatestStreamArn != nil {
		details["LatestStreamArn"] = aws.ToString(out.Table.LatestStreamArn)
	}
	return details, nil
}
