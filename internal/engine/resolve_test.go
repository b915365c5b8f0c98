package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklet-io/stacklet/internal/provider"
	"github.com/stacklet-io/stacklet/internal/registry"
	"github.com/stacklet-io/stacklet/internal/template"
	"github.com/stacklet-io/stacklet/providers/local"
)

func testEngine(t *testing.T) (*Engine, *local.Provider) {
	t.Helper()
	prov := local.New(provider.Config{})
	return New(registry.Default(), prov, Options{}), prov
}

func TestResolve_PseudoParameters(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	tmpl := testTemplate()
	ctx := context.Background()

	for ref, want := range map[string]string{
		"AWS::Region":    "us-east-1",
		"AWS::Partition": "aws",
		"AWS::StackName": "demo",
	} {
		v, err := eng.Resolve(ctx, sc, tmpl, map[string]any{"Ref": ref})
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestResolve_TemplateParameter(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	tmpl := testTemplate()
	tmpl.Parameters["Env"] = "staging"

	v, err := eng.Resolve(context.Background(), sc, tmpl, map[string]any{"Ref": "Env"})
	require.NoError(t, err)
	assert.Equal(t, "staging", v)
}

func TestResolve_UndeployedRefIsNil(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	tmpl := testTemplate(&template.Resource{LogicalID: "Jobs", Type: "SQS::Queue"})

	v, err := eng.Resolve(context.Background(), sc, tmpl, map[string]any{"Ref": "Jobs"})
	require.NoError(t, err, "an undeployed dependency is not an error")
	assert.Nil(t, v)
}

func TestResolve_StackParameterFallback(t *testing.T) {
	eng, prov := testEngine(t)
	sc := eng.stackContext("demo")
	tmpl := testTemplate()
	prov.SetStackParameters("demo", map[string]string{"VpcId": "vpc-123"})

	v, err := eng.Resolve(context.Background(), sc, tmpl, map[string]any{"Ref": "VpcId"})
	require.NoError(t, err)
	assert.Equal(t, "vpc-123", v)

	v, err = eng.Resolve(context.Background(), sc, tmpl, map[string]any{"Ref": "Unknown"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestResolve_SubIsDeterministic(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	tmpl := testTemplate()

	expr := map[string]any{"Fn::Sub": "arn:${AWS::Partition}:s3:::${AWS::Region}-bucket"}
	v, err := eng.Resolve(context.Background(), sc, tmpl, expr)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:s3:::us-east-1-bucket", v)
}

func TestResolve_SubWithExplicitMap(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	tmpl := testTemplate()
	tmpl.Parameters["Env"] = "prod"

	expr := map[string]any{"Fn::Sub": []any{
		"${Env}-${suffix}",
		map[string]any{"suffix": "data", "Env": map[string]any{"Ref": "Env"}},
	}}
	v, err := eng.Resolve(context.Background(), sc, tmpl, expr)
	require.NoError(t, err)
	assert.Equal(t, "prod-data", v)
}

func TestResolve_JoinFailsOnUndeployedPart(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	tmpl := testTemplate(&template.Resource{LogicalID: "Jobs", Type: "SQS::Queue"})

	expr := map[string]any{"Fn::Join": []any{"-", []any{"prefix", map[string]any{"Ref": "Jobs"}}}}
	_, err := eng.Resolve(context.Background(), sc, tmpl, expr)
	require.Error(t, err, "a partial join must never be produced")

	var unresolved *UnresolvedReferenceError
	assert.ErrorAs(t, err, &unresolved)
}

func TestResolve_JoinAfterDeployment(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	tmpl := testTemplate(
		&template.Resource{LogicalID: "A", Type: "SQS::Queue", Properties: map[string]any{"QueueName": "a1"}},
		&template.Resource{LogicalID: "B", Type: "SQS::Queue", Properties: map[string]any{"QueueName": "b1"}},
	)
	ctx := context.Background()

	rep, err := eng.Deploy(ctx, tmpl, "demo")
	require.NoError(t, err)
	require.True(t, rep.Complete)

	expr := map[string]any{"Fn::Join": []any{"-", []any{
		map[string]any{"Fn::GetAtt": []any{"A", "QueueName"}},
		map[string]any{"Fn::GetAtt": []any{"B", "QueueName"}},
	}}}
	v, err := eng.Resolve(ctx, sc, tmpl, expr)
	require.NoError(t, err)
	assert.Equal(t, "a1-b1", v)
}

func TestResolve_GetAttDottedString(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	tmpl := testTemplate(&template.Resource{LogicalID: "Jobs", Type: "SQS::Queue", Properties: map[string]any{"QueueName": "jobs"}})

	v, err := eng.Resolve(context.Background(), sc, tmpl, map[string]any{"Fn::GetAtt": "Jobs.Arn"})
	require.NoError(t, err)
	assert.Nil(t, v, "undeployed resource attributes resolve to nil")
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	tmpl := testTemplate()
	tmpl.Parameters["Env"] = "prod"

	input := map[string]any{
		"Nested": map[string]any{"Ref": "Env"},
		"List":   []any{map[string]any{"Ref": "Env"}},
	}
	out, err := eng.Resolve(context.Background(), sc, tmpl, input)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"Ref": "Env"}, input["Nested"], "input tree must stay intact")
	resolved := out.(map[string]any)
	assert.Equal(t, "prod", resolved["Nested"])
	assert.Equal(t, []any{"prod"}, resolved["List"])
}

func TestResolve_InvalidExpressions(t *testing.T) {
	eng, _ := testEngine(t)
	sc := eng.stackContext("demo")
	tmpl := testTemplate()
	ctx := context.Background()

	_, err := eng.Resolve(ctx, sc, tmpl, map[string]any{"Ref": 42})
	assert.Error(t, err)

	_, err = eng.Resolve(ctx, sc, tmpl, map[string]any{"Fn::GetAtt": "NoDot"})
	assert.Error(t, err)

	_, err = eng.Resolve(ctx, sc, tmpl, map[string]any{"Fn::Join": "not-a-list"})
	assert.Error(t, err)

	_, err = eng.Resolve(ctx, sc, tmpl, map[string]any{"Fn::Sub": 42})
	assert.Error(t, err)
}
