// Package aws is the AWS collaborator: it executes provider operations
// against real (or API-compatible, endpoint-overridden) AWS services using
// the v2 SDK.
package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/stacklet-io/stacklet/internal/provider"
)

type opFunc func(ctx context.Context, args map[string]any) (map[string]any, error)
type stateFunc func(ctx context.Context, req *provider.FetchRequest) (map[string]any, error)

// Provider implements provider.Interface against AWS APIs.
type Provider struct {
	s3          *s3.Client
	sqs         *sqs.Client
	sns         *sns.Client
	lambda      *lambda.Client
	dynamodb    *dynamodb.Client
	kinesis     *kinesis.Client
	iam         *iam.Client
	eventbridge *eventbridge.Client
	sfn         *sfn.Client
	apigateway  *apigateway.Client
	cfn         *cloudformation.Client

	ops    map[string]opFunc
	states map[string]stateFunc
}

var _ provider.Interface = (*Provider)(nil)

// New loads AWS configuration for the target region and builds all service
// clients. A non-empty endpoint overrides every service endpoint, which is
// how API-compatible local stacks are targeted.
func New(ctx context.Context, cfg provider.Config) (*Provider, error) {
	awscfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	if cfg.Endpoint != "" {
		awscfg.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	p := &Provider{
		s3: s3.NewFromConfig(awscfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.Endpoint != ""
		}),
		sqs:         sqs.NewFromConfig(awscfg),
		sns:         sns.NewFromConfig(awscfg),
		lambda:      lambda.NewFromConfig(awscfg),
		dynamodb:    dynamodb.NewFromConfig(awscfg),
		kinesis:     kinesis.NewFromConfig(awscfg),
		iam:         iam.NewFromConfig(awscfg),
		eventbridge: eventbridge.NewFromConfig(awscfg),
		sfn:         sfn.NewFromConfig(awscfg),
		apigateway:  apigateway.NewFromConfig(awscfg),
		cfn:         cloudformation.NewFromConfig(awscfg),
	}
	p.register()
	return p, nil
}

func (p *Provider) register() {
	p.ops = map[string]opFunc{
		"create_bucket":                         p.createBucket,
		"put_bucket_notification_configuration": p.putBucketNotification,
		"put_bucket_policy":                     p.putBucketPolicy,
		"put_bucket_tagging":                    p.putBucketTagging,
		"delete_bucket":                         p.deleteBucket,

		"create_queue": p.createQueue,
		"delete_queue": p.deleteQueue,

		"create_topic": p.createTopic,
		"delete_topic": p.deleteTopic,
		"subscribe":    p.subscribe,

		"create_function":               p.createFunction,
		"update_function_code":          p.updateFunctionCode,
		"update_function_configuration": p.updateFunctionConfiguration,
		"delete_function":               p.deleteFunction,
		"publish_version":               p.publishVersion,
		"create_event_source_mapping":   p.createEventSourceMapping,

		"create_table": p.createTable,
		"delete_table": p.deleteTable,

		"create_stream": p.createStream,
		"delete_stream": p.deleteStream,

		"put_rule":    p.putRule,
		"put_targets": p.putTargets,
		"delete_rule": p.deleteRule,

		"create_role": p.createRole,
		"delete_role": p.deleteRole,

		"create_state_machine": p.createStateMachine,
		"delete_state_machine": p.deleteStateMachine,
		"create_activity":      p.createActivity,

		"create_rest_api":     p.createRestAPI,
		"delete_rest_api":     p.deleteRestAPI,
		"create_resource":     p.createAPIResource,
		"put_method":          p.putMethod,
		"put_integration":     p.putIntegration,
		"put_method_response": p.putMethodResponse,
		"create_deployment":   p.createAPIDeployment,
	}

	p.states = map[string]stateFunc{
		"S3::Bucket":                  p.bucketState,
		"S3::BucketPolicy":            p.bucketPolicyState,
		"SQS::Queue":                  p.queueState,
		"SNS::Topic":                  p.topicState,
		"SNS::Subscription":           p.subscriptionState,
		"Lambda::Function":            p.functionState,
		"Lambda::Version":             p.functionVersionState,
		"Lambda::EventSourceMapping":  p.eventSourceMappingState,
		"DynamoDB::Table":             p.tableState,
		"Kinesis::Stream":             p.streamState,
		"Events::Rule":                p.ruleState,
		"IAM::Role":                   p.roleState,
		"StepFunctions::StateMachine": p.stateMachineState,
		"StepFunctions::Activity":     p.activityState,
		"ApiGateway::RestApi":         p.restAPIState,
		"ApiGateway::Resource":        p.apiResourceState,
		"ApiGateway::Method":          p.methodState,
		"ApiGateway::Deployment":      p.apiDeploymentState,
	}
}

// Invoke dispatches one named provider operation.
func (p *Provider) Invoke(ctx context.Context, operation string, args map[string]any) (map[string]any, error) {
	fn, ok := p.ops[operation]
	if !ok {
		return nil, fmt.Errorf("operation %q not supported by the aws provider", operation)
	}
	return fn(ctx, args)
}

// FetchState probes the current deployment state of one resource. Returns
// provider.ErrNotFound when the resource does not exist.
func (p *Provider) FetchState(ctx context.Context, req *provider.FetchRequest) (map[string]any, error) {
	fn, ok := p.states[req.Type]
	if !ok {
		return nil, fmt.Errorf("resource type %s: %w", req.Type, provider.ErrNotFound)
	}
	details, err := fn(ctx, req)
	if err != nil {
		if notFound(err) {
			return nil, provider.ErrNotFound
		}
		return nil, err
	}
	return details, nil
}

// StackParameter looks up a parameter of an already-deployed stack.
func (p *Provider) StackParameter(ctx context.Context, stackName, name string) (string, bool, error) {
	out, err := p.cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if notFound(err) || isValidationError(err) {
			return "", false, nil
		}
		return "", false, err
	}
	for _, stack := range out.Stacks {
		for _, param := range stack.Parameters {
			if aws.ToString(param.ParameterKey) == name {
				return aws.ToString(param.ParameterValue), true, nil
			}
		}
	}
	return "", false, nil
}

// decode maps generic operation arguments onto an SDK input struct.
func decode(args map[string]any, out any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding arguments: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding arguments into %T: %w", out, err)
	}
	return nil
}

// encode renders an SDK output struct as a generic result map.
func encode(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result %T: %w", v, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	delete(out, "ResultMetadata")
	return out, nil
}

func notFound(err error) bool {
	if errors.Is(err, provider.ErrNotFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case strings.Contains(code, "NotFound"),
			strings.Contains(code, "NoSuch"),
			strings.Contains(code, "NonExistentQueue"),
			code == "NoSuchEntity",
			code == "404":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}

func isValidationError(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationError"
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// resolveString runs a fetch request's resolver over a property and renders
// the result as a string.
func resolveString(req *provider.FetchRequest, v any) (string, error) {
	resolved, err := req.Resolve(v)
	if err != nil {
		return "", err
	}
	if resolved == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", resolved), nil
}
