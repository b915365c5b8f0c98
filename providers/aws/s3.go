package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stacklet-io/stacklet/internal/provider"
)

func (p *Provider) createBucket(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(stringArg(args, "Bucket")),
	}
	if acl := stringArg(args, "ACL"); acl != "" {
		input.ACL = types.BucketCannedACL(acl)
	}
	if cfg, ok := args["CreateBucketConfiguration"].(map[string]any); ok {
		// us-east-1 is the one region that must be expressed as an absent
		// location constraint.
		if loc := stringArg(cfg, "LocationConstraint"); loc != "" && loc != "us-east-1" {
			input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(loc),
			}
		}
	}
	out, err := p.s3.CreateBucket(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) putBucketNotification(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &s3.PutBucketNotificationConfigurationInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.s3.PutBucketNotificationConfiguration(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) putBucketPolicy(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &s3.PutBucketPolicyInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.s3.PutBucketPolicy(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) putBucketTagging(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &s3.PutBucketTaggingInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.s3.PutBucketTagging(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) deleteBucket(ctx context.Context, args map[string]any) (map[string]any, error) {
	out, err := p.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(stringArg(args, "Bucket")),
	})
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) bucketState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	bucket := req.Name
	if _, err := p.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, err
	}

	// A bucket declared with notifications is not fully deployed until the
	// notification configuration is in place.
	if _, declared := req.Properties["NotificationConfiguration"]; declared {
		cfg, err := p.s3.GetBucketNotificationConfiguration(ctx, &s3.GetBucketNotificationConfigurationInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			return nil, err
		}
		if len(cfg.LambdaFunctionConfigurations) == 0 &&
			len(cfg.QueueConfigurations) == 0 &&
			len(cfg.TopicConfigurations) == 0 {
			return nil, provider.ErrNotFound
		}
	}

	return map[string]any{
		"PhysicalResourceId": bucket,
		"BucketName":         bucket,
	}, nil
}

func (p *Provider) bucketPolicyState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	bucket, err := resolveString(req, req.Properties["Bucket"])
	if err != nil {
		return nil, err
	}
	if bucket == "" {
		return nil, provider.ErrNotFound
	}
	out, err := p.s3.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(bucket)})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"PhysicalResourceId": bucket,
		"Policy":             aws.ToString(out.Policy),
	}, nil
}
