package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklet-io/stacklet/internal/template"
)

func TestDisplayName_Precedence(t *testing.T) {
	r := Default()

	res := &template.Resource{
		LogicalID: "Jobs",
		Type:      "SQS::Queue",
		Properties: map[string]any{
			"Name":      "explicit",
			"QueueName": "typed",
		},
	}
	assert.Equal(t, "explicit", r.DisplayName(res), "Name property wins")

	delete(res.Properties, "Name")
	assert.Equal(t, "typed", r.DisplayName(res), "type-specific name property is next")

	delete(res.Properties, "QueueName")
	assert.Equal(t, "Jobs", r.DisplayName(res), "logical ID is the last resort")
}

func TestDeployableAndSteps(t *testing.T) {
	r := Default()

	assert.True(t, r.Deployable("SQS::Queue"))
	assert.False(t, r.Deployable("Logs::LogGroup"), "known type without a create action")
	assert.False(t, r.Deployable("Nope::Nope"))

	steps := r.Steps("S3::Bucket", ActionCreate)
	require.Len(t, steps, 2)
	assert.Equal(t, "create_bucket", steps[0].Operation)
	assert.Equal(t, "put_bucket_notification_configuration", steps[1].Operation)

	assert.Nil(t, r.Steps("SNS::Subscription", ActionDelete))
}

func TestAttributeTranslation(t *testing.T) {
	r := Default()
	assert.Equal(t, "FunctionArn", r.Attribute("Lambda::Function", "Arn"))
	assert.Equal(t, "LatestStreamArn", r.Attribute("DynamoDB::Table", "StreamArn"))
	assert.Equal(t, "Arn", r.Attribute("SQS::Queue", "Arn"), "unmapped attributes pass through")
	assert.Equal(t, "Whatever", r.Attribute("Nope::Nope", "Whatever"))
}

func TestConvertACL(t *testing.T) {
	assert.Equal(t, "public-read", convertACL("PublicRead"))
	assert.Equal(t, "public-read-write", convertACL("PublicReadWrite"))
	assert.Equal(t, "private", convertACL("Private"))
}

func TestSelectParameters(t *testing.T) {
	f := SelectParameters("A", "B")
	out, err := f(map[string]any{"A": 1, "B": nil, "C": 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"A": 1}, out, "nil and unselected values are dropped")
}

func TestRenameParams(t *testing.T) {
	f := RenameParams(nil, map[string]string{"Old": "New"})
	out, err := f(map[string]any{"Old": "v", "Other": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"New": "v", "Other": 1}, out)
}

func TestDumpJSONParams(t *testing.T) {
	f := DumpJSONParams(nil, "Doc", "Plain")
	out, err := f(map[string]any{
		"Doc":   map[string]any{"Version": "2012-10-17"},
		"Plain": "already a string",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"Version":"2012-10-17"}`, out["Doc"])
	assert.Equal(t, "already a string", out["Plain"], "strings are left alone")
}

func TestParamDefaults(t *testing.T) {
	f := ParamDefaults(nil, map[string]any{"A": "def", "B": "def"})
	out, err := f(map[string]any{"A": "", "B": "set"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "def", out["A"], "empty strings take the default")
	assert.Equal(t, "set", out["B"])
}

func TestListToDict(t *testing.T) {
	f := ListToDict("Tags", "Key", "Value")
	out, err := f(map[string]any{"Tags": []any{
		map[string]any{"Key": "env", "Value": "prod"},
		map[string]any{"Key": "team", "Value": "infra"},
	}}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"env": "prod", "team": "infra"}, out)

	out, err = f(map[string]any{}, nil)
	require.NoError(t, err)
	assert.Nil(t, out, "absent list yields no argument")
}

func TestSelectAttributes(t *testing.T) {
	f := SelectAttributes("DelaySeconds", "RedrivePolicy")
	out, err := f(map[string]any{
		"DelaySeconds":  30,
		"RedrivePolicy": map[string]any{"maxReceiveCount": 3},
		"Ignored":       "x",
	}, nil)
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "30", m["DelaySeconds"], "scalars are stringified")
	assert.Equal(t, `{"maxReceiveCount":3}`, m["RedrivePolicy"], "documents are JSON encoded")
}

func TestBucketNotificationConfig(t *testing.T) {
	out, err := bucketNotificationConfig(map[string]any{}, nil)
	require.NoError(t, err)
	assert.Nil(t, out, "buckets without notifications skip the step")

	props := map[string]any{
		"BucketName": "uploads",
		"NotificationConfiguration": map[string]any{
			"QueueConfigurations": []any{
				map[string]any{
					"Event": "s3:ObjectCreated:*",
					"Queue": map[string]any{"Fn::GetAtt": []any{"Jobs", "Arn"}},
					"Filter": map[string]any{
						"S3Key": map[string]any{"Rules": []any{
							map[string]any{"Name": "suffix", "Value": ".csv"},
						}},
					},
				},
			},
		},
	}
	out, err = bucketNotificationConfig(props, nil)
	require.NoError(t, err)
	assert.Equal(t, "uploads", out["Bucket"])

	cfg := out["NotificationConfiguration"].(map[string]any)
	queues := cfg["QueueConfigurations"].([]any)
	require.Len(t, queues, 1)
	entry := queues[0].(map[string]any)
	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{"Jobs", "Arn"}}, entry["QueueArn"],
		"reference expressions survive the reshape for later resolution")
	assert.Equal(t, []any{"s3:ObjectCreated:*"}, entry["Events"])
	assert.NotNil(t, entry["Filter"])
}

func TestStateMachineRoleArn(t *testing.T) {
	tc := &TransformContext{
		Partition: "aws",
		AccountID: "000000000000",
		Resolve:   func(v any) (any, error) { return v, nil },
	}

	v, err := stateMachineRoleArn(map[string]any{"RoleArn": "sfn-exec"}, tc)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::000000000000:role/sfn-exec", v, "bare names expand to role ARNs")

	v, err = stateMachineRoleArn(map[string]any{"RoleArn": "arn:aws:iam::000000000000:role/x"}, tc)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::000000000000:role/x", v)
}

func TestRegisterOverride(t *testing.T) {
	r := Default()
	r.Register("Custom::Thing", &Entry{Create: []Step{{Operation: "make_thing"}}})
	assert.True(t, r.Deployable("Custom::Thing"))

	e, ok := r.Lookup("Custom::Thing")
	require.True(t, ok)
	assert.Equal(t, "make_thing", e.Create[0].Operation)
}
