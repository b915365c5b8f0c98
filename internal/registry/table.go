package registry

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// builtin returns the built-in resource catalogue. The engine consumes this
// table; it contains no deployment logic of its own.
func builtin() map[string]*Entry {
	return map[string]*Entry{
		"S3::Bucket": {
			NameProperty: "BucketName",
			Create: []Step{
				{
					Operation: "create_bucket",
					Params: ParamSpec{Mapping: map[string]Source{
						"Bucket":                    NameFallback("BucketName"),
						"ACL":                       Fn(bucketACL),
						"CreateBucketConfiguration": Fn(bucketLocation),
					}},
				},
				{
					Operation: "put_bucket_notification_configuration",
					Params:    ParamSpec{Transform: bucketNotificationConfig},
				},
			},
			Delete: []Step{{
				Operation: "delete_bucket",
				Params: ParamSpec{Mapping: map[string]Source{
					"Bucket": From("PhysicalResourceId"),
				}},
			}},
			Post: bucketTagsPost,
		},

		"S3::BucketPolicy": {
			Create: []Step{{
				Operation: "put_bucket_policy",
				Params: ParamSpec{Transform: RenameParams(
					DumpJSONParams(nil, "PolicyDocument"),
					map[string]string{"PolicyDocument": "Policy"},
				)},
			}},
		},

		"SQS::Queue": {
			NameProperty: "QueueName",
			PhysicalID:   "QueueUrl",
			Create: []Step{{
				Operation: "create_queue",
				Params: ParamSpec{Mapping: map[string]Source{
					"QueueName": NameFallback("QueueName"),
					"Attributes": Fn(SelectAttributes(
						"DelaySeconds", "MaximumMessageSize", "MessageRetentionPeriod",
						"VisibilityTimeout", "RedrivePolicy",
					)),
					"tags": Fn(ListToDict("Tags", "Key", "Value")),
				}},
			}},
			Delete: []Step{{
				Operation: "delete_queue",
				Params: ParamSpec{Mapping: map[string]Source{
					"QueueUrl": From("PhysicalResourceId"),
				}},
			}},
		},

		"SNS::Topic": {
			NameProperty: "TopicName",
			PhysicalID:   "TopicArn",
			Create: []Step{{
				Operation: "create_topic",
				Params: ParamSpec{Mapping: map[string]Source{
					"Name": NameFallback("TopicName"),
					"Tags": From("Tags"),
				}},
			}},
			Delete: []Step{{
				Operation: "delete_topic",
				Params: ParamSpec{Mapping: map[string]Source{
					"TopicArn": From("PhysicalResourceId"),
				}},
			}},
			Post: topicSubscriptionsPost,
		},

		"SNS::Subscription": {
			PhysicalID: "SubscriptionArn",
			Create: []Step{{
				Operation: "subscribe",
				Params: ParamSpec{Mapping: map[string]Source{
					"TopicArn":   From("TopicArn"),
					"Protocol":   From("Protocol"),
					"Endpoint":   From("Endpoint"),
					"Attributes": Fn(subscriptionAttributes),
				}},
			}},
		},

		"Lambda::Function": {
			NameProperty: "FunctionName",
			PhysicalID:   "FunctionName",
			Attributes:   map[string]string{"Arn": "FunctionArn"},
			Create: []Step{{
				Operation: "create_function",
				Params: ParamSpec{Mapping: map[string]Source{
					"FunctionName": NameFallback("FunctionName"),
					"Runtime":      From("Runtime"),
					"Role":         From("Role"),
					"Handler":      From("Handler"),
					"Code":         From("Code"),
					"Description":  From("Description"),
					"Environment":  From("Environment"),
					"Timeout":      From("Timeout"),
					"MemorySize":   From("MemorySize"),
				}},
				Defaults: map[string]any{
					"Role": "arn:aws:iam::000000000000:role/stacklet-exec",
				},
				Types: map[string]ArgType{
					"Timeout":    TypeInt,
					"MemorySize": TypeInt,
				},
			}},
			Update: []Step{
				{
					Operation: "update_function_code",
					Params:    ParamSpec{Transform: lambdaCodeUpdate},
				},
				{
					Operation: "update_function_configuration",
					Params: ParamSpec{Mapping: map[string]Source{
						"FunctionName": NameFallback("FunctionName"),
						"Role":         From("Role"),
						"Handler":      From("Handler"),
						"Description":  From("Description"),
						"Timeout":      From("Timeout"),
						"MemorySize":   From("MemorySize"),
						"Environment":  From("Environment"),
						"Runtime":      From("Runtime"),
					}},
					Types: map[string]ArgType{
						"Timeout":    TypeInt,
						"MemorySize": TypeInt,
					},
				},
			},
			Delete: []Step{{
				Operation: "delete_function",
				Params: ParamSpec{Mapping: map[string]Source{
					"FunctionName": From("PhysicalResourceId"),
				}},
			}},
		},

		"Lambda::Version": {
			Create: []Step{{
				Operation: "publish_version",
				Params: ParamSpec{Mapping: map[string]Source{
					"FunctionName": From("FunctionName"),
					"CodeSha256":   From("CodeSha256"),
					"Description":  From("Description"),
				}},
			}},
		},

		"Lambda::Permission": {},

		"Lambda::EventSourceMapping": {
			Create: []Step{{
				Operation: "create_event_source_mapping",
				Params: ParamSpec{Mapping: map[string]Source{
					"FunctionName":              From("FunctionName"),
					"EventSourceArn":            From("EventSourceArn"),
					"StartingPosition":          From("StartingPosition"),
					"Enabled":                   From("Enabled"),
					"BatchSize":                 From("BatchSize"),
					"StartingPositionTimestamp": From("StartingPositionTimestamp"),
				}},
				Types: map[string]ArgType{
					"Enabled":   TypeBool,
					"BatchSize": TypeInt,
				},
			}},
		},

		"DynamoDB::Table": {
			NameProperty: "TableName",
			PhysicalID:   "TableName",
			Attributes:   map[string]string{"StreamArn": "LatestStreamArn"},
			Create: []Step{{
				Operation: "create_table",
				Params: ParamSpec{Mapping: map[string]Source{
					"TableName":              NameFallback("TableName"),
					"AttributeDefinitions":   From("AttributeDefinitions"),
					"KeySchema":              From("KeySchema"),
					"ProvisionedThroughput":  From("ProvisionedThroughput"),
					"LocalSecondaryIndexes":  From("LocalSecondaryIndexes"),
					"GlobalSecondaryIndexes": From("GlobalSecondaryIndexes"),
					"StreamSpecification":    Fn(tableStreamSpec),
				}},
				Defaults: map[string]any{
					"ProvisionedThroughput": map[string]any{
						"ReadCapacityUnits":  5,
						"WriteCapacityUnits": 5,
					},
				},
			}},
			Delete: []Step{{
				Operation: "delete_table",
				Params: ParamSpec{Mapping: map[string]Source{
					"TableName": From("PhysicalResourceId"),
				}},
			}},
		},

		"Kinesis::Stream": {
			NameProperty: "Name",
			Create: []Step{{
				Operation: "create_stream",
				Params: ParamSpec{Mapping: map[string]Source{
					"StreamName": NameFallback("Name"),
					"ShardCount": From("ShardCount"),
				}},
				Defaults: map[string]any{"ShardCount": 1},
				Types:    map[string]ArgType{"ShardCount": TypeInt},
			}},
			Delete: []Step{{
				Operation: "delete_stream",
				Params: ParamSpec{Mapping: map[string]Source{
					"StreamName": From("PhysicalResourceId"),
				}},
			}},
		},

		"Events::Rule": {
			NameProperty: "Name",
			PhysicalID:   "RuleArn",
			Create: []Step{
				{
					Operation: "put_rule",
					Params: ParamSpec{Mapping: map[string]Source{
						"Name":               ResourceName(),
						"ScheduleExpression": From("ScheduleExpression"),
						"EventPattern":       From("EventPattern"),
						"State":              From("State"),
						"Description":        From("Description"),
					}},
				},
				{
					Operation: "put_targets",
					Params: ParamSpec{Mapping: map[string]Source{
						"Rule":         ResourceName(),
						"EventBusName": From("EventBusName"),
						"Targets":      From("Targets"),
					}},
				},
			},
			Delete: []Step{{
				Operation: "delete_rule",
				Params: ParamSpec{Mapping: map[string]Source{
					"Name": From("PhysicalResourceId"),
				}},
			}},
		},

		"IAM::Role": {
			NameProperty: "RoleName",
			PhysicalID:   "RoleName",
			Create: []Step{{
				Operation: "create_role",
				Params: ParamSpec{Transform: ParamDefaults(
					DumpJSONParams(
						SelectParameters("Path", "RoleName", "AssumeRolePolicyDocument",
							"Description", "MaxSessionDuration", "PermissionsBoundary", "Tags"),
						"AssumeRolePolicyDocument"),
					map[string]any{"RoleName": PlaceholderName},
				)},
			}},
			Delete: []Step{{
				Operation: "delete_role",
				Params: ParamSpec{Mapping: map[string]Source{
					"RoleName": From("PhysicalResourceId"),
				}},
			}},
		},

		"StepFunctions::StateMachine": {
			NameProperty: "StateMachineName",
			PhysicalID:   "StateMachineArn",
			Create: []Step{{
				Operation: "create_state_machine",
				Params: ParamSpec{Mapping: map[string]Source{
					"name":       NameFallback("StateMachineName"),
					"definition": From("DefinitionString"),
					"roleArn":    Fn(stateMachineRoleArn),
				}},
			}},
			Delete: []Step{{
				Operation: "delete_state_machine",
				Params: ParamSpec{Mapping: map[string]Source{
					"stateMachineArn": From("PhysicalResourceId"),
				}},
			}},
		},

		"StepFunctions::Activity": {
			NameProperty: "Name",
			PhysicalID:   "ActivityArn",
			Create: []Step{{
				Operation: "create_activity",
				Params: ParamSpec{Mapping: map[string]Source{
					"name": NameFallback("Name"),
					"tags": From("Tags"),
				}},
			}},
		},

		"ApiGateway::RestApi": {
			NameProperty: "Name",
			PhysicalID:   "Id",
			Create: []Step{{
				Operation: "create_rest_api",
				Params: ParamSpec{Mapping: map[string]Source{
					"name":        From("Name"),
					"description": From("Description"),
				}},
			}},
			Delete: []Step{{
				Operation: "delete_rest_api",
				Params: ParamSpec{Mapping: map[string]Source{
					"restApiId": From("PhysicalResourceId"),
				}},
			}},
		},

		"ApiGateway::Resource": {
			PhysicalID: "Id",
			Create: []Step{{
				Operation: "create_resource",
				Params: ParamSpec{Mapping: map[string]Source{
					"restApiId": From("RestApiId"),
					"pathPart":  From("PathPart"),
					"parentId":  From("ParentId"),
				}},
			}},
		},

		"ApiGateway::Method": {
			Create: []Step{{
				Operation: "put_method",
				Params: ParamSpec{Mapping: map[string]Source{
					"restApiId":         From("RestApiId"),
					"resourceId":        From("ResourceId"),
					"httpMethod":        From("HttpMethod"),
					"authorizationType": From("AuthorizationType"),
					"requestParameters": From("RequestParameters"),
				}},
			}},
			Update: []Step{{
				Operation: "put_method",
				Params: ParamSpec{Mapping: map[string]Source{
					"restApiId":         From("RestApiId"),
					"resourceId":        From("ResourceId"),
					"httpMethod":        From("HttpMethod"),
					"authorizationType": From("AuthorizationType"),
					"requestParameters": From("RequestParameters"),
				}},
			}},
			Post: methodIntegrationPost,
		},

		"ApiGateway::Deployment": {
			PhysicalID: "Id",
			Create: []Step{{
				Operation: "create_deployment",
				Params: ParamSpec{Mapping: map[string]Source{
					"restApiId":        From("RestApiId"),
					"stageName":        From("StageName"),
					"stageDescription": From("StageDescription"),
					"description":      From("Description"),
				}},
			}},
		},

		"Logs::LogGroup": {},
	}
}

// ----------------------------------------------------------------------
// Custom transforms.
// ----------------------------------------------------------------------

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// convertACL converts a template ACL string such as "PublicRead" to the
// canned-ACL form "public-read".
func convertACL(acl string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(acl, "$1-$2"))
}

func bucketACL(props map[string]any, _ *TransformContext) (any, error) {
	acl, _ := props["AccessControl"].(string)
	if acl == "" {
		acl = "PublicRead"
	}
	return convertACL(acl), nil
}

func bucketLocation(_ map[string]any, tc *TransformContext) (any, error) {
	return map[string]any{"LocationConstraint": tc.Region}, nil
}

// bucketNotificationConfig reshapes the template's notification block into
// the put_bucket_notification_configuration argument set. A nil return skips
// the step for buckets without notifications.
func bucketNotificationConfig(props map[string]any, _ *TransformContext) (map[string]any, error) {
	notif, _ := props["NotificationConfiguration"].(map[string]any)
	if notif == nil {
		return nil, nil
	}

	shapes := []struct {
		source  string
		target  string
		arnAttr string
		srcAttr string
	}{
		{"LambdaConfigurations", "LambdaFunctionConfigurations", "LambdaFunctionArn", "Function"},
		{"QueueConfigurations", "QueueConfigurations", "QueueArn", "Queue"},
		{"TopicConfigurations", "TopicConfigurations", "TopicArn", "Topic"},
	}

	out := map[string]any{}
	for _, shape := range shapes {
		var entries []any
		list, _ := notif[shape.source].([]any)
		for _, raw := range list {
			cfg, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			entry := map[string]any{
				shape.arnAttr: cfg[shape.srcAttr],
				"Events":      []any{cfg["Event"]},
			}
			if rules := filterRules(cfg); rules != nil {
				entry["Filter"] = map[string]any{"Key": map[string]any{"FilterRules": rules}}
			}
			entries = append(entries, entry)
		}
		out[shape.target] = entries
	}

	bucket := props["BucketName"]
	if bucket == nil {
		bucket = PlaceholderName
	}
	return map[string]any{
		"Bucket":                    bucket,
		"NotificationConfiguration": out,
	}, nil
}

func filterRules(cfg map[string]any) any {
	filter, _ := cfg["Filter"].(map[string]any)
	if filter == nil {
		return nil
	}
	s3key, _ := filter["S3Key"].(map[string]any)
	if s3key == nil {
		return nil
	}
	return s3key["Rules"]
}

// subscriptionAttributes stringifies the subscription attributes that must
// arrive as strings on the wire.
func subscriptionAttributes(props map[string]any, _ *TransformContext) (any, error) {
	names := []string{"DeliveryPolicy", "FilterPolicy", "RawMessageDelivery", "RedrivePolicy"}
	out := map[string]any{}
	for _, n := range names {
		if v, ok := props[n]; ok && v != nil {
			out[n] = Stringify(v)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// tableStreamSpec forces StreamEnabled on when a stream specification is
// present at all.
func tableStreamSpec(props map[string]any, _ *TransformContext) (any, error) {
	spec, _ := props["StreamSpecification"].(map[string]any)
	if spec == nil {
		return nil, nil
	}
	out := map[string]any{"StreamEnabled": true}
	for k, v := range spec {
		out[k] = v
	}
	return out, nil
}

// stateMachineRoleArn resolves the RoleArn property and expands a bare role
// name to a full ARN.
func stateMachineRoleArn(props map[string]any, tc *TransformContext) (any, error) {
	v, err := tc.Resolve(props["RoleArn"])
	if err != nil || v == nil {
		return v, err
	}
	role := fmt.Sprintf("%v", v)
	if strings.HasPrefix(role, "arn:") {
		return role, nil
	}
	return fmt.Sprintf("arn:%s:iam::%s:role/%s", tc.Partition, tc.AccountID, role), nil
}

// lambdaCodeUpdate builds update_function_code arguments; skipped when the
// function has no Code property.
func lambdaCodeUpdate(props map[string]any, _ *TransformContext) (map[string]any, error) {
	code, _ := props["Code"].(map[string]any)
	if code == nil {
		return nil, nil
	}
	out := map[string]any{"FunctionName": props["FunctionName"]}
	for k, v := range code {
		out[k] = v
	}
	return out, nil
}

// ----------------------------------------------------------------------
// Post-create hooks: type-specific sub-resources chained after the
// primary calls.
// ----------------------------------------------------------------------

func bucketTagsPost(ctx context.Context, pc *PostContext) error {
	tags, _ := pc.Resource.Properties["Tags"].([]any)
	if len(tags) == 0 {
		return nil
	}
	_, err := pc.Invoke(ctx, "put_bucket_tagging", map[string]any{
		"Bucket":  pc.Args["Bucket"],
		"Tagging": map[string]any{"TagSet": tags},
	})
	return err
}

func topicSubscriptionsPost(ctx context.Context, pc *PostContext) error {
	subs, _ := pc.Resource.Properties["Subscription"].([]any)
	for _, raw := range subs {
		sub, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		endpoint, err := pc.Resolve(sub["Endpoint"])
		if err != nil {
			return err
		}
		_, err = pc.Invoke(ctx, "subscribe", map[string]any{
			"TopicArn": pc.Result["TopicArn"],
			"Protocol": sub["Protocol"],
			"Endpoint": endpoint,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func methodIntegrationPost(ctx context.Context, pc *PostContext) error {
	props := pc.Resource.Properties

	apiID, err := pc.Resolve(props["RestApiId"])
	if err != nil {
		return err
	}
	resID, err := pc.Resolve(props["ResourceId"])
	if err != nil {
		return err
	}

	if integration, ok := props["Integration"].(map[string]any); ok {
		args := map[string]any{
			"restApiId":  apiID,
			"resourceId": resID,
			"httpMethod": props["HttpMethod"],
			"type":       integration["Type"],
		}
		if uri := integration["Uri"]; uri != nil {
			resolved, err := pc.Resolve(uri)
			if err != nil {
				return err
			}
			args["uri"] = resolved
		}
		if m := integration["IntegrationHttpMethod"]; m != nil {
			args["integrationHttpMethod"] = m
		}
		if _, err := pc.Invoke(ctx, "put_integration", args); err != nil {
			return err
		}
	}

	responses, _ := props["MethodResponses"].([]any)
	for _, raw := range responses {
		resp, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		args := map[string]any{
			"restApiId":          apiID,
			"resourceId":         resID,
			"httpMethod":         props["HttpMethod"],
			"statusCode":         resp["StatusCode"],
			"responseParameters": resp["ResponseParameters"],
		}
		if _, err := pc.Invoke(ctx, "put_method_response", args); err != nil {
			return err
		}
	}
	return nil
}
