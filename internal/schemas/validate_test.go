package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	embedded "github.com/jonathan/cv-sync/schemas"
)

func TestValidate_CVDocument(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{
			name: "minimal document",
			json: `{"personalInfo":{"firstName":"Ana","lastName":"Diaz"},"skills":[]}`,
		},
		{
			name: "null lists from legacy blobs",
			json: `{"personalInfo":{},"education":null,"skills":null}`,
		},
		{
			name:    "missing personal info",
			json:    `{"skills":[]}`,
			wantErr: true,
		},
		{
			name:    "skill without name",
			json:    `{"personalInfo":{},"skills":[{"level":"expert"}]}`,
			wantErr: true,
		},
		{
			name:    "unknown skill level",
			json:    `{"personalInfo":{},"skills":[{"name":"Go","level":"guru"}]}`,
			wantErr: true,
		},
		{
			name:    "completion out of range",
			json:    `{"personalInfo":{},"completionPercentage":140}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(embedded.CVDocument, []byte(tt.json))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.NotEmpty(t, verr.Errors)
			assert.Equal(t, embedded.CVDocument, verr.Schema)
		})
	}
}

func TestValidate_PendingUpdates(t *testing.T) {
	valid := `[{"id":"7d4c","type":"cv_update","data":{"skills":[]},"timestamp":"2026-01-01T00:00:00Z"}]`
	assert.NoError(t, Validate(embedded.PendingUpdates, []byte(valid)))

	wrongType := `[{"id":"7d4c","type":"delete","data":{},"timestamp":"2026-01-01T00:00:00Z"}]`
	assert.Error(t, Validate(embedded.PendingUpdates, []byte(wrongType)))

	notArray := `{"id":"7d4c"}`
	assert.Error(t, Validate(embedded.PendingUpdates, []byte(notArray)))
}

func TestValidate_MalformedDocument(t *testing.T) {
	err := Validate(embedded.CVDocument, []byte(`{"personalInfo":`))
	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoad_UnknownSchema(t *testing.T) {
	_, err := Load("nope.schema.json")
	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "schema not found")
}

func TestLoad_IsCached(t *testing.T) {
	first, err := Load(embedded.CVDocument)
	require.NoError(t, err)
	second, err := Load(embedded.CVDocument)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestValidateJSONString_Valid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`

	assert.NoError(t, ValidateJSONString(schemaContent, `{"name": "test"}`))
}

func TestValidateJSONString_Invalid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`

	err := ValidateJSONString(schemaContent, `{"age": 30}`)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Greater(t, len(validationErr.Errors), 0)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Errors: []FieldError{
			{Field: "name", Message: "is required"},
			{Field: "age", Message: "must be a number"},
		},
	}

	errorMsg := err.Error()
	assert.Contains(t, errorMsg, "validation failed")
	assert.Contains(t, errorMsg, "name")
	assert.Contains(t, errorMsg, "age")
}
