package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklet-io/stacklet/internal/registry"
	"github.com/stacklet-io/stacklet/internal/template"
)

func TestBuildArguments_SourceSelection(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	res := &template.Resource{LogicalID: "Jobs", Type: "SQS::Queue"}
	tmpl := testTemplate(res)

	step := registry.Step{
		Operation: "create_queue",
		Params: registry.ParamSpec{Mapping: map[string]registry.Source{
			"QueueName": registry.NameFallback("QueueName"),
			"First":     registry.From("Missing", "Present"),
			"Absent":    registry.From("AlsoMissing"),
		}},
	}
	res.Properties = map[string]any{"Present": "value"}

	args, err := eng.buildArguments(context.Background(), sc, tmpl, res, res.Properties, step)
	require.NoError(t, err)
	assert.Equal(t, "Jobs", args["QueueName"], "name fallback lands on the logical ID")
	assert.Equal(t, "value", args["First"], "fallback chains take the first present key")
	assert.NotContains(t, args, "Absent")
}

func TestBuildArguments_PlaceholderSubstitution(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	res := &template.Resource{
		LogicalID:  "Exec",
		Type:       "IAM::Role",
		Properties: map[string]any{"RoleName": "svc-exec"},
	}
	tmpl := testTemplate(res)

	step := registry.Step{
		Operation: "create_role",
		Params: registry.ParamSpec{Mapping: map[string]registry.Source{
			"RoleName": registry.ResourceName(),
			"Nested":   registry.Fn(func(map[string]any, *registry.TransformContext) (any, error) {
				return map[string]any{"Inner": registry.PlaceholderName}, nil
			}),
		}},
	}

	args, err := eng.buildArguments(context.Background(), sc, tmpl, res, res.Properties, step)
	require.NoError(t, err)
	assert.Equal(t, "svc-exec", args["RoleName"])
	nested := args["Nested"].(map[string]any)
	assert.Equal(t, "svc-exec", nested["Inner"], "placeholders are replaced anywhere in the tree")
}

func TestBuildArguments_TransformSkip(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	res := &template.Resource{LogicalID: "Bucket", Type: "S3::Bucket", Properties: map[string]any{}}
	tmpl := testTemplate(res)

	step := registry.Step{
		Operation: "noop",
		Params: registry.ParamSpec{Transform: func(map[string]any, *registry.TransformContext) (map[string]any, error) {
			return nil, nil
		}},
	}

	args, err := eng.buildArguments(context.Background(), sc, tmpl, res, res.Properties, step)
	require.NoError(t, err)
	assert.Nil(t, args, "a nil transform result skips the step")
}

func TestBuildArguments_DefaultsAndResolution(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	res := &template.Resource{LogicalID: "Fn", Type: "Lambda::Function"}
	tmpl := testTemplate(res)
	tmpl.Parameters["Env"] = "prod"
	res.Properties = map[string]any{
		"Handler": map[string]any{"Fn::Sub": "${Env}.handler"},
		"Role":    "",
		"Enabled": "True",
	}

	step := registry.Step{
		Operation: "create_function",
		Params: registry.ParamSpec{Mapping: map[string]registry.Source{
			"Handler": registry.From("Handler"),
			"Role":    registry.From("Role"),
			"Enabled": registry.From("Enabled"),
		}},
		Defaults: map[string]any{"Role": "arn:aws:iam::000000000000:role/default"},
	}

	args, err := eng.buildArguments(context.Background(), sc, tmpl, res, res.Properties, step)
	require.NoError(t, err)
	assert.Equal(t, "prod.handler", args["Handler"], "intrinsics are resolved per argument")
	assert.Equal(t, "arn:aws:iam::000000000000:role/default", args["Role"], "empty strings take the default")
	assert.Equal(t, true, args["Enabled"], "boolean-shaped strings coerce at the top level")
}

func TestBuildArguments_AccountIDRewrite(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	res := &template.Resource{LogicalID: "Fn", Type: "Lambda::Function"}
	tmpl := testTemplate(res)
	res.Properties = map[string]any{
		"Role": "arn:aws:iam::111122223333:role/foreign",
		"Env": map[string]any{
			"Vars": []any{"arn:aws:sqs:us-east-1:999988887777:jobs"},
		},
		"Policy": `{"Statement":[{"Principal":{"AWS":"arn:aws:iam::111122223333:root"}}]}`,
	}

	step := registry.Step{
		Operation: "create_function",
		Params: registry.ParamSpec{Mapping: map[string]registry.Source{
			"Role":   registry.From("Role"),
			"Env":    registry.From("Env"),
			"Policy": registry.From("Policy"),
		}},
	}

	args, err := eng.buildArguments(context.Background(), sc, tmpl, res, res.Properties, step)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::000000000000:role/foreign", args["Role"])
	env := args["Env"].(map[string]any)
	assert.Equal(t, []any{"arn:aws:sqs:us-east-1:000000000000:jobs"}, env["Vars"],
		"ARN account segments are rewritten anywhere in the tree")
	assert.Equal(t, `{"Statement":[{"Principal":{"AWS":"arn:aws:iam::000000000000:root"}}]}`, args["Policy"],
		"ARNs embedded in encoded policy documents are rewritten too")
}

func TestBuildArguments_TypeCoercion(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	res := &template.Resource{LogicalID: "Fn", Type: "Lambda::Function"}
	tmpl := testTemplate(res)
	res.Properties = map[string]any{
		"Timeout":    "30",
		"MemorySize": float64(128),
		"Weird":      "not-a-number",
	}

	step := registry.Step{
		Operation: "create_function",
		Params: registry.ParamSpec{Mapping: map[string]registry.Source{
			"Timeout":    registry.From("Timeout"),
			"MemorySize": registry.From("MemorySize"),
			"Weird":      registry.From("Weird"),
		}},
		Types: map[string]registry.ArgType{
			"Timeout":    registry.TypeInt,
			"MemorySize": registry.TypeInt,
			"Weird":      registry.TypeInt,
		},
	}

	args, err := eng.buildArguments(context.Background(), sc, tmpl, res, res.Properties, step)
	require.NoError(t, err)
	assert.Equal(t, 30, args["Timeout"])
	assert.Equal(t, 128, args["MemorySize"])
	assert.Equal(t, "not-a-number", args["Weird"], "unparseable values pass through untouched")
}

func TestStripNils_Idempotent(t *testing.T) {
	in := map[string]any{
		"Keep": "v",
		"Drop": nil,
		"Nested": map[string]any{
			"AlsoDrop": nil,
			"List":     []any{"a"},
		},
	}
	once := stripNils(in).(map[string]any)
	twice := stripNils(once).(map[string]any)

	want := map[string]any{
		"Keep": "v",
		"Nested": map[string]any{
			"List": []any{"a"},
		},
	}
	assert.Equal(t, want, once)
	assert.Equal(t, once, twice, "stripping an already-stripped tree changes nothing")
}

func TestRewriteAccountIDs_NonARNUntouched(t *testing.T) {
	assert.Equal(t, "plain string", rewriteAccountIDs("plain string", "000000000000"))
	assert.Equal(t, "arn:aws:s3:::bucket", rewriteAccountIDs("arn:aws:s3:::bucket", "000000000000"),
		"ARNs without an account segment stay as they are")
}
