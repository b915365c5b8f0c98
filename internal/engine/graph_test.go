package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklet-io/stacklet/internal/template"
)

func testTemplate(resources ...*template.Resource) *template.Template {
	tmpl := &template.Template{
		Resources:  make(map[string]*template.Resource),
		Parameters: make(map[string]string),
	}
	for _, res := range resources {
		if res.Properties == nil {
			res.Properties = map[string]any{}
		}
		tmpl.Resources[res.LogicalID] = res
	}
	return tmpl
}

func TestDependenciesOf_Explicit(t *testing.T) {
	tmpl := testTemplate(
		&template.Resource{LogicalID: "A", Type: "SQS::Queue", DependsOn: []string{"B", "Missing", "A"}},
		&template.Resource{LogicalID: "B", Type: "SQS::Queue"},
	)

	deps := DependenciesOf(tmpl.Resource("A"), tmpl)
	require.Len(t, deps, 1, "self and unknown targets are ignored")
	assert.Contains(t, deps, "B")
}

func TestDependenciesOf_Structural(t *testing.T) {
	tmpl := testTemplate(
		&template.Resource{LogicalID: "Bucket", Type: "S3::Bucket", Properties: map[string]any{
			"NotificationConfiguration": map[string]any{
				"QueueConfigurations": []any{
					map[string]any{"Queue": map[string]any{"Fn::GetAtt": []any{"Jobs", "Arn"}}},
				},
			},
			"Tags": []any{map[string]any{"Value": map[string]any{"Ref": "Topic"}}},
			"Self": map[string]any{"Ref": "Bucket"},
		}},
		&template.Resource{LogicalID: "Jobs", Type: "SQS::Queue"},
		&template.Resource{LogicalID: "Topic", Type: "SNS::Topic"},
	)

	deps := DependenciesOf(tmpl.Resource("Bucket"), tmpl)
	assert.Len(t, deps, 2)
	assert.Contains(t, deps, "Jobs", "GetAtt targets count as dependencies")
	assert.Contains(t, deps, "Topic", "Ref targets count as dependencies")
}

func TestDependenciesOf_DottedGetAtt(t *testing.T) {
	tmpl := testTemplate(
		&template.Resource{LogicalID: "Fn", Type: "Lambda::Function", Properties: map[string]any{
			"Role": map[string]any{"Fn::GetAtt": "ExecRole.Arn"},
		}},
		&template.Resource{LogicalID: "ExecRole", Type: "IAM::Role"},
	)

	deps := DependenciesOf(tmpl.Resource("Fn"), tmpl)
	assert.Contains(t, deps, "ExecRole")
}

func TestDeletionOrder_ReverseOfDependencies(t *testing.T) {
	tmpl := testTemplate(
		&template.Resource{LogicalID: "A", Type: "SQS::Queue"},
		&template.Resource{LogicalID: "B", Type: "SQS::Queue", DependsOn: []string{"A"}},
		&template.Resource{LogicalID: "C", Type: "SQS::Queue", DependsOn: []string{"B"}},
	)

	order, err := DeletionOrder(tmpl)
	require.NoError(t, err)
	require.Len(t, order, 3)

	posA := indexOf(order, "A")
	posB := indexOf(order, "B")
	posC := indexOf(order, "C")
	assert.Less(t, posC, posB, "dependents are deleted first")
	assert.Less(t, posB, posA)
}

func TestDeletionOrder_Cycle(t *testing.T) {
	tmpl := testTemplate(
		&template.Resource{LogicalID: "A", Type: "SQS::Queue", DependsOn: []string{"B"}},
		&template.Resource{LogicalID: "B", Type: "SQS::Queue", DependsOn: []string{"A"}},
	)

	_, err := DeletionOrder(tmpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
