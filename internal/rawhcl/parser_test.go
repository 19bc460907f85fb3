package rawhcl

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestParse_ResourceBlock(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.tf", `
resource "aws_s3_bucket" "b" {
  bucket = "my-bucket"
  count  = 2
}
`)

	payload, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	resources, ok := payload["resource"]
	if !ok || len(resources) != 1 {
		t.Fatalf("expected one resource entry, got %#v", payload["resource"])
	}

	typeBlock, ok := resources[0].(Block)
	if !ok {
		t.Fatalf("resource entry is not a Block: %#v", resources[0])
	}

	nameBlock, ok := typeBlock["aws_s3_bucket"].(Block)
	if !ok {
		t.Fatalf("missing aws_s3_bucket nesting: %#v", typeBlock)
	}

	body, ok := nameBlock["b"].(RawPayload)
	if !ok {
		t.Fatalf("missing b nesting: %#v", nameBlock)
	}

	if got := body["bucket"][0]; got != "my-bucket" {
		t.Errorf("bucket = %v, want my-bucket", got)
	}

	if got := body["count"][0]; got != float64(2) {
		t.Errorf("count = %v (%T), want 2", got, got)
	}
}

func TestParse_UnresolvedExpressionFallsBackToSourceText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.tf", `
resource "aws_instance" "i" {
  ami = var.ami_id
}
`)

	payload, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	resources := payload["resource"]
	typeBlock := resources[0].(Block)
	nameBlock := typeBlock["aws_instance"].(Block)
	body := nameBlock["i"].(RawPayload)

	got, ok := body["ami"][0].(string)
	if !ok {
		t.Fatalf("ami attribute is not a string: %#v", body["ami"][0])
	}
	if got != "var.ami_id" {
		t.Errorf("ami = %q, want source text %q", got, "var.ami_id")
	}
}

func TestParse_TFVarsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "terraform.tfvars", `
region = "eu-central-1"
replicas = 3
`)

	payload, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := payload["region"][0]; got != "eu-central-1" {
		t.Errorf("region = %v, want eu-central-1", got)
	}
	if got := payload["replicas"][0]; got != float64(3) {
		t.Errorf("replicas = %v, want 3", got)
	}
}

func TestParse_JSONFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.tf.json", `{
  "variable": {
    "region": {
      "default": "eu-central-1"
    }
  }
}`)

	payload, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	variables, ok := payload["variable"]
	if !ok || len(variables) != 1 {
		t.Fatalf("expected one variable entry, got %#v", payload["variable"])
	}
}

func TestParse_StripsBOM(t *testing.T) {
	dir := t.TempDir()
	contents := "\xEF\xBB\xBFregion = \"eu-central-1\"\n"
	path := writeFile(t, dir, "terraform.tfvars", contents)

	payload, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := payload["region"][0]; got != "eu-central-1" {
		t.Errorf("region = %v, want eu-central-1", got)
	}
}

func TestIsValidBlock(t *testing.T) {
	tests := []struct {
		name  string
		entry any
		want  bool
	}{
		{"scalar passes", "eu-central-1", true},
		{"empty map rejected", map[string]any{}, false},
		{"single valid key", map[string]any{"my_var": map[string]any{}}, true},
		{"single invalid key", map[string]any{"123bad": map[string]any{}}, false},
		{"multi key always valid", map[string]any{"a": 1, "b": 2}, true},
		{"Block type single valid key", Block{"my_resource": "x"}, true},
		{"Block type single invalid key", Block{"!bad": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidBlock(tt.entry); got != tt.want {
				t.Errorf("isValidBlock(%#v) = %v, want %v", tt.entry, got, tt.want)
			}
		})
	}
}

func TestCleanBadDefinitions_KeepsLocalsAndTerraformAsIs(t *testing.T) {
	payload := RawPayload{
		"locals":    []any{map[string]any{"a": 1, "b": 2}},
		"terraform": []any{map[string]any{"backend": 1, "required_providers": 2}},
	}

	cleaned := cleanBadDefinitions(payload)

	if len(cleaned["locals"]) != 1 {
		t.Errorf("expected locals entry to survive untouched, got %#v", cleaned["locals"])
	}
	if len(cleaned["terraform"]) != 1 {
		t.Errorf("expected terraform entry to survive untouched, got %#v", cleaned["terraform"])
	}
}

func TestCleanBadDefinitions_DropsMultiKeyBlocksElsewhere(t *testing.T) {
	payload := RawPayload{
		"resource": []any{
			Block{"aws_instance": "single"},
			map[string]any{"aws_instance": 1, "aws_vpc": 2},
		},
	}

	cleaned := cleanBadDefinitions(payload)

	if len(cleaned["resource"]) != 1 {
		t.Fatalf("expected one surviving resource entry, got %#v", cleaned["resource"])
	}
}
