package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_JSONTemplate(t *testing.T) {
	data := []byte(`{
		"Resources": {
			"Queue": {
				"Type": "AWS::SQS::Queue",
				"Properties": {"QueueName": "jobs"}
			},
			"Bucket": {
				"Type": "S3::Bucket",
				"DependsOn": "Queue"
			}
		},
		"Parameters": {
			"Env": {"Type": "String", "Default": "staging"},
			"NoDefault": {"Type": "String"}
		}
	}`)

	tmpl, err := Parse(data, ParserConfig{})
	require.NoError(t, err)
	require.Len(t, tmpl.Resources, 2)

	queue := tmpl.Resource("Queue")
	require.NotNil(t, queue)
	assert.Equal(t, "SQS::Queue", queue.Type, "vendor prefix should be stripped")
	assert.Equal(t, "jobs", queue.Properties["QueueName"])

	bucket := tmpl.Resource("Bucket")
	require.NotNil(t, bucket)
	assert.Equal(t, []string{"Queue"}, bucket.DependsOn, "scalar DependsOn becomes a list")
	assert.NotNil(t, bucket.Properties, "missing Properties becomes an empty map")

	assert.Equal(t, "staging", tmpl.Parameters["Env"])
	_, ok := tmpl.Parameters["NoDefault"]
	assert.False(t, ok, "parameters without defaults have no initial value")
}

func TestParse_YAMLShortForms(t *testing.T) {
	data := []byte(`
Resources:
  Fn:
    Type: Lambda::Function
    Properties:
      FunctionName: !Ref Env
      Role: !GetAtt ExecRole.Arn
      Description: !Sub "fn in ${AWS::Region}"
      Handler: !Join ["-", [a, b]]
  ExecRole:
    Type: IAM::Role
`)
	tmpl, err := Parse(data, ParserConfig{})
	require.NoError(t, err)

	props := tmpl.Resource("Fn").Properties
	assert.Equal(t, map[string]any{"Ref": "Env"}, props["FunctionName"])
	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{"ExecRole", "Arn"}}, props["Role"],
		"dotted short-form GetAtt splits into [id, attribute]")
	assert.Equal(t, map[string]any{"Fn::Sub": "fn in ${AWS::Region}"}, props["Description"])
	assert.Equal(t, map[string]any{"Fn::Join": []any{"-", []any{"a", "b"}}}, props["Handler"])
}

func TestParse_YAMLDependsOnList(t *testing.T) {
	data := []byte(`
Resources:
  A:
    Type: SQS::Queue
    DependsOn: [B, C]
  B:
    Type: SQS::Queue
  C:
    Type: SQS::Queue
`)
	tmpl, err := Parse(data, ParserConfig{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"B", "C"}, tmpl.Resource("A").DependsOn)
}

func TestParse_DateStringsStayStrings(t *testing.T) {
	data := []byte(`
Resources:
  Role:
    Type: IAM::Role
    Properties:
      AssumeRolePolicyDocument:
        Version: 2012-10-17
`)
	tmpl, err := Parse(data, ParserConfig{})
	require.NoError(t, err)

	doc := tmpl.Resource("Role").Properties["AssumeRolePolicyDocument"].(map[string]any)
	assert.Equal(t, "2012-10-17", doc["Version"], "policy version must not decode as a date")
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`{`), ParserConfig{})
	assert.Error(t, err)

	_, err = Parse([]byte(`{"Parameters": {}}`), ParserConfig{})
	assert.ErrorContains(t, err, "no Resources")
}
