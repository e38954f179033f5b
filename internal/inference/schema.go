package inference

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"coworker/internal/document"
	"coworker/internal/services/llm"
)

//go:embed schema.json
var schemaSource []byte

const schemaURL = "extraction.json"

// serviceOwnedFields are filled locally and ignored when the model sends them.
var serviceOwnedFields = []string{
	"is_review_needed",
	"review_reason",
	"processing_time",
	"token_usage",
	"model",
	"extracted_at",
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaSource)); err != nil {
		return nil, fmt.Errorf("add extraction schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile extraction schema: %w", err)
	}
	return schema, nil
}

// parseReply decodes and validates a service reply. The returned result has
// its service-owned fields normalized; review fields are left for the policy.
func parseReply(schema *jsonschema.Schema, content string, categories []string) (document.Result, error) {
	var raw any
	if err := llm.DecodeLLMJSON(content, &raw); err != nil {
		return document.Result{}, fmt.Errorf("decode reply: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return document.Result{}, fmt.Errorf("reply does not match schema: %w", err)
	}
	if fields, ok := raw.(map[string]any); ok {
		for _, key := range serviceOwnedFields {
			delete(fields, key)
		}
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return document.Result{}, fmt.Errorf("re-encode reply: %w", err)
	}
	var result document.Result
	if err := json.Unmarshal(normalized, &result); err != nil {
		return document.Result{}, fmt.Errorf("decode result: %w", err)
	}
	normalizeResult(&result, categories)
	return result, nil
}

func normalizeResult(result *document.Result, categories []string) {
	result.DocType = document.NormalizeDocType(result.DocType, categories)
	result.Merchant = strings.TrimSpace(result.Merchant)
	result.Currency = strings.ToUpper(strings.TrimSpace(result.Currency))
	result.Summary = strings.TrimSpace(result.Summary)
	result.DocDate = strings.TrimSpace(result.DocDate)
	if result.DocDate != "" {
		if _, err := time.Parse(time.DateOnly, result.DocDate); err != nil {
			result.DocDate = ""
			result.UncertainFields = appendUnique(result.UncertainFields, "doc_date")
		}
	}
	result.IsReviewNeeded = false
	result.ReviewReason = ""
	result.Clamp()
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
