package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/stacklet-io/stacklet/internal/provider"
)

func (p *Provider) createFunction(ctx context.Context, args map[string]any) (map[string]any, error) {
	code := args["Code"]
	rest := make(map[string]any, len(args))
	for k, v := range args {
		if k != "Code" {
			rest[k] = v
		}
	}
	input := &lambda.CreateFunctionInput{}
	if err := decode(rest, input); err != nil {
		return nil, err
	}
	input.Code = functionCode(code)

	out, err := p.lambda.CreateFunction(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) updateFunctionCode(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(stringArg(args, "FunctionName")),
	}
	if code := functionCode(args); code != nil {
		input.ZipFile = code.ZipFile
		input.S3Bucket = code.S3Bucket
		input.S3Key = code.S3Key
		input.S3ObjectVersion = code.S3ObjectVersion
	}
	out, err := p.lambda.UpdateFunctionCode(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) updateFunctionConfiguration(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &lambda.UpdateFunctionConfigurationInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.lambda.UpdateFunctionConfiguration(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) deleteFunction(ctx context.Context, args map[string]any) (map[string]any, error) {
	out, err := p.lambda.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: aws.String(stringArg(args, "FunctionName")),
	})
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) publishVersion(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &lambda.PublishVersionInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.lambda.PublishVersion(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) createEventSourceMapping(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &lambda.CreateEventSourceMappingInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.lambda.CreateEventSourceMapping(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

// functionCode builds the SDK code struct from the template's Code block.
// An inline ZipFile string is taken as raw archive bytes.
func functionCode(v any) *types.FunctionCode {
	code, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := &types.FunctionCode{}
	if zip := stringArg(code, "ZipFile"); zip != "" {
		out.ZipFile = []byte(zip)
	}
	if b := stringArg(code, "S3Bucket"); b != "" {
		out.S3Bucket = aws.String(b)
	}
	if k := stringArg(code, "S3Key"); k != "" {
		out.S3Key = aws.String(k)
	}
	if ver := stringArg(code, "S3ObjectVersion"); ver != "" {
		out.S3ObjectVersion = aws.String(ver)
	}
	return out
}

func (p *Provider) functionState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	out, err := p.lambda.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(req.Name),
	})
	if err != nil {
		return nil, err
	}
	details, err := encode(out.Configuration)
	if err != nil {
		return nil, err
	}
	details["PhysicalResourceId"] = aws.ToString(out.Configuration.FunctionName)
	return details, nil
}

func (p *Provider) functionVersionState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	fn, err := resolveString(req, req.Properties["FunctionName"])
	if err != nil {
		return nil, err
	}
	if fn == "" {
		return nil, provider.ErrNotFound
	}
	out, err := p.lambda.ListVersionsByFunction(ctx, &lambda.ListVersionsByFunctionInput{
		FunctionName: aws.String(fn),
	})
	if err != nil {
		return nil, err
	}
	for _, v := range out.Versions {
		if aws.ToString(v.Version) != "$LATEST" {
			details, err := encode(v)
			if err != nil {
				return nil, err
			}
			details["PhysicalResourceId"] = aws.ToString(v.FunctionArn)
			return details, nil
		}
	}
	return nil, provider.ErrNotFound
}

func (p *Provider) eventSourceMappingState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	fn, err := resolveString(req, req.Properties["FunctionName"])
	if err != nil {
		return nil, err
	}
	sourceArn, err := resolveString(req, req.Properties["EventSourceArn"])
	if err != nil {
		return nil, err
	}
	if fn == "" || sourceArn == "" {
		return nil, provider.ErrNotFound
	}
	out, err := p.lambda.ListEventSourceMappings(ctx, &lambda.ListEventSourceMappingsInput{
		FunctionName:   aws.String(fn),
		EventSourceArn: aws.String(sourceArn),
	})
	if err != nil {
		return nil, err
	}
	if len(out.EventSourceMappings) == 0 {
		return nil, provider.ErrNotFound
	}
	details, err := encode(out.EventSourceMappings[0])
	if err != nil {
		return nil, err
	}
	details["PhysicalResourceId"] = aws.ToString(out.EventSourceMappings[0].UUID)
	return details, nil
}
