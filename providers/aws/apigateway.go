package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"

	"github.com/stacklet-io/stacklet/internal/provider"
)

func (p *Provider) createRestAPI(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &apigateway.CreateRestApiInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.apigateway.CreateRestApi(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) deleteRestAPI(ctx context.Context, args map[string]any) (map[string]any, error) {
	out, err := p.apigateway.DeleteRestApi(ctx, &apigateway.DeleteRestApiInput{
		RestApiId: aws.String(stringArg(args, "restApiId")),
	})
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) createAPIResource(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &apigateway.CreateResourceInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.apigateway.CreateResource(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) putMethod(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &apigateway.PutMethodInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.apigateway.PutMethod(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) putIntegration(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &apigateway.PutIntegrationInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.apigateway.PutIntegration(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) putMethodResponse(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &apigateway.PutMethodResponseInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.apigateway.PutMethodResponse(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) createAPIDeployment(ctx context.Context, args map[string]any) (map[string]any, error) {
	input := &apigateway.CreateDeploymentInput{}
	if err := decode(args, input); err != nil {
		return nil, err
	}
	out, err := p.apigateway.CreateDeployment(ctx, input)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (p *Provider) restAPIState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	var position *string
	for {
		out, err := p.apigateway.GetRestApis(ctx, &apigateway.GetRestApisInput{Position: position})
		if err != nil {
			return nil, err
		}
		for _, api := range out.Items {
			if aws.ToString(api.Name) == req.Name {
				return map[string]any{
					"PhysicalResourceId": aws.ToString(api.Id),
					"Id":                 aws.ToString(api.Id),
					"Name":               aws.ToString(api.Name),
				}, nil
			}
		}
		if out.Position == nil {
			return nil, provider.ErrNotFound
		}
		position = out.Position
	}
}

func (p *Provider) apiResourceState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	apiID, err := resolveString(req, req.Properties["RestApiId"])
	if err != nil {
		return nil, err
	}
	if apiID == "" {
		return nil, provider.ErrNotFound
	}
	pathPart, _ := req.Properties["PathPart"].(string)

	out, err := p.apigateway.GetResources(ctx, &apigateway.GetResourcesInput{
		RestApiId: aws.String(apiID),
	})
	if err != nil {
		return nil, err
	}
	for _, res := range out.Items {
		if aws.ToString(res.PathPart) == pathPart {
			return map[string]any{
				"PhysicalResourceId": aws.ToString(res.Id),
				"Id":                 aws.ToString(res.Id),
				"Path":               aws.ToString(res.Path),
			}, nil
		}
	}
	return nil, provider.ErrNotFound
}

func (p *Provider) methodState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	apiID, err := resolveString(req, req.Properties["RestApiId"])
	if err != nil {
		return nil, err
	}
	resID, err := resolveString(req, req.Properties["ResourceId"])
	if err != nil {
		return nil, err
	}
	method, _ := req.Properties["HttpMethod"].(string)
	if apiID == "" || resID == "" {
		return nil, provider.ErrNotFound
	}

	out, err := p.apigateway.GetMethod(ctx, &apigateway.GetMethodInput{
		RestApiId:  aws.String(apiID),
		ResourceId: aws.String(resID),
		HttpMethod: aws.String(method),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"PhysicalResourceId": method,
		"HttpMethod":         aws.ToString(out.HttpMethod),
	}, nil
}

func (p *Provider) apiDeploymentState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	apiID, err := resolveString(req, req.Properties["RestApiId"])
	if err != nil {
		return nil, err
	}
	if apiID == "" {
		return nil, provider.ErrNotFound
	}
	out, err := p.apigateway.GetDeployments(ctx, &apigateway.GetDeploymentsInput{
		RestApiId: aws.String(apiID),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, provider.ErrNotFound
	}
	return map[string]any{
		"PhysicalResourceId": aws.ToString(out.Items[0].Id),
		"Id":                 aws.ToString(out.Items[0].Id),
	}, nil
}
