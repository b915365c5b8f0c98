// Package local is an in-memory collaborator emulating the provider surface.
// It backs tests and offline dry runs: operations record state in process and
// hand back identifiers shaped like the real ones.
package local

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/stacklet-io/stacklet/internal/provider"
)

// Provider implements provider.Interface over in-process state.
type Provider struct {
	mu        sync.Mutex
	region    string
	accountID string

	// resources maps "<kind>/<name>" to the stored detail map.
	resources map[string]map[string]any
	// stackParams maps stack name to its parameter set.
	stackParams map[string]map[string]string

	// Calls records every operation invoked, in order. Tests assert on it.
	Calls []string
}

var _ provider.Interface = (*Provider)(nil)

// New returns an empty local provider for the given region and account.
func New(cfg provider.Config) *Provider {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	accountID := cfg.AccountID
	if accountID == "" {
		accountID = "000000000000"
	}
	return &Provider{
		region:      region,
		accountID:   accountID,
		resources:   make(map[string]map[string]any),
		stackParams: make(map[string]map[string]string),
	}
}

// SetStackParameters registers the parameters of a notionally deployed stack.
func (p *Provider) SetStackParameters(stackName string, params map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stackParams[stackName] = params
}

// StackParameter looks up a parameter of a registered stack.
func (p *Provider) StackParameter(_ context.Context, stackName, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if params, ok := p.stackParams[stackName]; ok {
		if v, ok := params[name]; ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

func key(kind, name string) string { return kind + "/" + name }

func (p *Provider) put(kind, name string, details map[string]any) map[string]any {
	p.resources[key(kind, name)] = details
	return details
}

func (p *Provider) get(kind, name string) (map[string]any, bool) {
	d, ok := p.resources[key(kind, name)]
	return d, ok
}

func (p *Provider) arn(service, resource string) string {
	if service == "iam" {
		return fmt.Sprintf("arn:aws:iam::%s:%s", p.accountID, resource)
	}
	return fmt.Sprintf("arn:aws:%s:%s:%s:%s", service, p.region, p.accountID, resource)
}

// Invoke executes one named operation against the in-memory state.
func (p *Provider) Invoke(_ context.Context, operation string, args map[string]any) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, operation)

	str := func(k string) string {
		if v, ok := args[k]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
		return ""
	}

	switch operation {
	case "create_bucket":
		name := str("Bucket")
		return p.put("s3", name, map[string]any{
			"PhysicalResourceId": name,
			"BucketName":         name,
		}), nil
	case "put_bucket_notification_configuration":
		name := str("Bucket")
		if d, ok := p.get("s3", name); ok {
			d["NotificationConfiguration"] = args["NotificationConfiguration"]
		}
		return map[string]any{}, nil
	case "put_bucket_tagging":
		return map[string]any{}, nil
	case "put_bucket_policy":
		name := str("Bucket")
		return p.put("s3policy", name, map[string]any{
			"PhysicalResourceId": name,
			"Policy":             args["Policy"],
		}), nil
	case "delete_bucket":
		delete(p.resources, key("s3", str("Bucket")))
		return map[string]any{}, nil

	case "create_queue":
		name := str("QueueName")
		url := fmt.Sprintf("https://sqs.%s.amazonaws.com/%s/%s", p.region, p.accountID, name)
		return p.put("sqs", name, map[string]any{
			"PhysicalResourceId": url,
			"QueueUrl":           url,
			"QueueName":          name,
			"Arn":                p.arn("sqs", name),
			"QueueArn":           p.arn("sqs", name),
			"Attributes":         args["Attributes"],
		}), nil
	case "delete_queue":
		url := str("QueueUrl")
		name := url[strings.LastIndex(url, "/")+1:]
		delete(p.resources, key("sqs", name))
		return map[string]any{}, nil

	case "create_topic":
		name := str("Name")
		arn := p.arn("sns", name)
		return p.put("sns", name, map[string]any{
			"PhysicalResourceId": arn,
			"TopicArn":           arn,
			"TopicName":          name,
		}), nil
	case "delete_topic":
		arn := str("TopicArn")
		name := arn[strings.LastIndex(arn, ":")+1:]
		delete(p.resources, key("sns", name))
		return map[string]any{}, nil
	case "subscribe":
		topicArn := str("TopicArn")
		subArn := topicArn + ":" + uuid.NewString()
		return p.put("snssub", str("TopicArn")+"|"+str("Protocol")+"|"+str("Endpoint"), map[string]any{
			"PhysicalResourceId": subArn,
			"SubscriptionArn":    subArn,
			"TopicArn":           topicArn,
		}), nil

	case "create_function":
		name := str("FunctionName")
		return p.put("lambda", name, map[string]any{
			"PhysicalResourceId": name,
			"FunctionName":       name,
			"FunctionArn":        p.arn("lambda", "function:"+name),
			"Runtime":            args["Runtime"],
			"Handler":            args["Handler"],
			"Role":               args["Role"],
			"Timeout":            args["Timeout"],
			"MemorySize":         args["MemorySize"],
		}), nil
	case "update_function_code", "update_function_configuration":
		name := str("FunctionName")
		d, ok := p.get("lambda", name)
		if !ok {
			return nil, fmt.Errorf("ResourceNotFoundException: function %s", name)
		}
		for k, v := range args {
			if k != "FunctionName" {
				d[k] = v
			}
		}
		return d, nil
	case "delete_function":
		delete(p.resources, key("lambda", str("FunctionName")))
		return map[string]any{}, nil
	case "publish_version":
		name := str("FunctionName")
		d, ok := p.get("lambda", name)
		if !ok {
			return nil, fmt.Errorf("ResourceNotFoundException: function %s", name)
		}
		arn := fmt.Sprintf("%v:1", d["FunctionArn"])
		return p.put("lambdaversion", name, map[string]any{
			"PhysicalResourceId": arn,
			"FunctionArn":        arn,
			"Version":            "1",
		}), nil
	case "create_event_source_mapping":
		id := uuid.NewString()
		return p.put("lambdamapping", str("FunctionName")+"|"+str("EventSourceArn"), map[string]any{
			"PhysicalResourceId": id,
			"UUID":               id,
			"EventSourceArn":     args["EventSourceArn"],
			"BatchSize":          args["BatchSize"],
		}), nil

	case "create_table":
		name := str("TableName")
		details := map[string]any{
			"PhysicalResourceId": name,
			"TableName":          name,
			"TableArn":           p.arn("dynamodb", "table/"+name),
			"KeySchema":          args["KeySchema"],
		}
		if args["StreamSpecification"] != nil {
			details["LatestStreamArn"] = p.arn("dynamodb", "table/"+name+"/stream/latest")
		}
		return p.put("dynamodb", name, details), nil
	case "delete_table":
		delete(p.resources, key("dynamodb", str("TableName")))
		return map[string]any{}, nil

	case "create_stream":
		name := str("StreamName")
		return p.put("kinesis", name, map[string]any{
			"PhysicalResourceId": name,
			"StreamName":         name,
			"Arn":                p.arn("kinesis", "stream/"+name),
			"ShardCount":         args["ShardCount"],
		}), nil
	case "delete_stream":
		delete(p.resources, key("kinesis", str("StreamName")))
		return map[string]any{}, nil

	case "put_rule":
		name := str("Name")
		arn := p.arn("events", "rule/"+name)
		return p.put("events", name, map[string]any{
			"PhysicalResourceId": arn,
			"RuleArn":            arn,
			"Name":               name,
		}), nil
	case "put_targets":
		return map[string]any{"FailedEntryCount": 0}, nil
	case "delete_rule":
		delete(p.resources, key("events", str("Name")))
		return map[string]any{}, nil

	case "create_role":
		name := str("RoleName")
		return p.put("iam", name, map[string]any{
			"PhysicalResourceId": name,
			"RoleName":           name,
			"Arn":                p.arn("iam", "role/"+name),
		}), nil
	case "delete_role":
		delete(p.resources, key("iam", str("RoleName")))
		return map[string]any{}, nil

	case "create_state_machine":
		name := str("name")
		arn := p.arn("states", "stateMachine:"+name)
		return p.put("sfn", name, map[string]any{
			"PhysicalResourceId": arn,
			"StateMachineArn":    arn,
			"Name":               name,
		}), nil
	case "delete_state_machine":
		arn := str("stateMachineArn")
		name := arn[strings.LastIndex(arn, ":")+1:]
		delete(p.resources, key("sfn", name))
		return map[string]any{}, nil
	case "create_activity":
		name := str("name")
		arn := p.arn("states", "activity:"+name)
		return p.put("sfnactivity", name, map[string]any{
			"PhysicalResourceId": arn,
			"ActivityArn":        arn,
			"Name":               name,
		}), nil

	case "create_rest_api":
		name := str("name")
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
		return p.put("apigw", name, map[string]any{
			"PhysicalResourceId": id,
			"Id":                 id,
			"Name":               name,
		}), nil
	case "delete_rest_api":
		id := str("restApiId")
		for k, d := range p.resources {
			if strings.HasPrefix(k, "apigw/") && d["Id"] == id {
				delete(p.resources, k)
			}
		}
		return map[string]any{}, nil
	case "create_resource":
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
		return p.put("apigwresource", str("restApiId")+"|"+str("pathPart"), map[string]any{
			"PhysicalResourceId": id,
			"Id":                 id,
			"PathPart":           args["pathPart"],
		}), nil
	case "put_method":
		return p.put("apigwmethod", str("restApiId")+"|"+str("resourceId")+"|"+str("httpMethod"), map[string]any{
			"PhysicalResourceId": str("httpMethod"),
			"HttpMethod":         args["httpMethod"],
		}), nil
	case "put_integration", "put_method_response":
		return map[string]any{}, nil
	case "create_deployment":
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
		return p.put("apigwdeployment", str("restApiId"), map[string]any{
			"PhysicalResourceId": id,
			"Id":                 id,
		}), nil
	}

	return nil, fmt.Errorf("operation %q not supported by the local provider", operation)
}

// FetchState looks a resource up by its derived name. The locator runs before
// the lock is taken: resolving it may re-enter the provider.
func (p *Provider) FetchState(_ context.Context, req *provider.FetchRequest) (map[string]any, error) {
	kind, name, err := p.locator(req)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	details, ok := p.get(kind, name)
	if !ok {
		return nil, provider.ErrNotFound
	}

	// A bucket declared with notifications counts as deployed only once its
	// notification configuration landed.
	if req.Type == "S3::Bucket" {
		if _, declared := req.Properties["NotificationConfiguration"]; declared {
			if details["NotificationConfiguration"] == nil {
				return nil, provider.ErrNotFound
			}
		}
	}

	out := make(map[string]any, len(details))
	for k, v := range details {
		out[k] = v
	}
	return out, nil
}

// locator maps a fetch request to the store key for its type.
func (p *Provider) locator(req *provider.FetchRequest) (kind, name string, err error) {
	resolveStr := func(v any) (string, error) {
		r, err := req.Resolve(v)
		if err != nil || r == nil {
			return "", err
		}
		return fmt.Sprintf("%v", r), nil
	}

	switch req.Type {
	case "S3::Bucket":
		return "s3", req.Name, nil
	case "S3::BucketPolicy":
		bucket, err := resolveStr(req.Properties["Bucket"])
		return "s3policy", bucket, err
	case "SQS::Queue":
		return "sqs", req.Name, nil
	case "SNS::Topic":
		return "sns", req.Name, nil
	case "SNS::Subscription":
		topic, err := resolveStr(req.Properties["TopicArn"])
		if err != nil {
			return "", "", err
		}
		endpoint, err := resolveStr(req.Properties["Endpoint"])
		if err != nil {
			return "", "", err
		}
		protocol, _ := req.Properties["Protocol"].(string)
		return "snssub", topic + "|" + protocol + "|" + endpoint, nil
	case "Lambda::Function":
		return "lambda", req.Name, nil
	case "Lambda::Version":
		fn, err := resolveStr(req.Properties["FunctionName"])
		return "lambdaversion", fn, err
	case "Lambda::EventSourceMapping":
		fn, err := resolveStr(req.Properties["FunctionName"])
		if err != nil {
			return "", "", err
		}
		src, err := resolveStr(req.Properties["EventSourceArn"])
		return "lambdamapping", fn + "|" + src, err
	case "DynamoDB::Table":
		return "dynamodb", req.Name, nil
	case "Kinesis::Stream":
		return "kinesis", req.Name, nil
	case "Events::Rule":
		return "events", req.Name, nil
	case "IAM::Role":
		return "iam", req.Name, nil
	case "StepFunctions::StateMachine":
		return "sfn", req.Name, nil
	case "StepFunctions::Activity":
		return "sfnactivity", req.Name, nil
	case "ApiGateway::RestApi":
		return "apigw", req.Name, nil
	case "ApiGateway::Resource":
		api, err := resolveStr(req.Properties["RestApiId"])
		if err != nil {
			return "", "", err
		}
		path, _ := req.Properties["PathPart"].(string)
		return "apigwresource", api + "|" + path, nil
	case "ApiGateway::Method":
		api, err := resolveStr(req.Properties["RestApiId"])
		if err != nil {
			return "", "", err
		}
		res, err := resolveStr(req.Properties["ResourceId"])
		if err != nil {
			return "", "", err
		}
		method, _ := req.Properties["HttpMethod"].(string)
		return "apigwmethod", api + "|" + res + "|" + method, nil
	case "ApiGateway::Deployment":
		api, err := resolveStr(req.Properties["RestApiId"])
		return "apigwdeployment", api, err
	}
	return "", "", fmt.Errorf("resource type %s: %w", req.Type, provider.ErrNotFound)
}
