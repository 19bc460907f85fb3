package varresolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tfload/tfload/internal/rawhcl"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolve_DefaultsOverriddenByTFVars(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "terraform.tfvars"), `region = "us-east-1"`)

	filePayloads := map[string]rawhcl.RawPayload{
		filepath.Join(dir, "variables.tf"): {
			"variable": []any{
				rawhcl.Block{"region": rawhcl.RawPayload{"default": []any{"eu-central-1"}}},
			},
		},
	}

	result, err := Resolve(Options{Dir: dir, FilePayloads: filePayloads})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if result.Variables["region"] != "us-east-1" {
		t.Errorf("region = %v, want us-east-1 (tfvars should win over default)", result.Variables["region"])
	}
}

func TestResolve_TFVarsSurvivesMultiKeyMap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "terraform.tfvars"), `tags = { Name = "x", Env = "prod" }`)

	result, err := Resolve(Options{Dir: dir, FilePayloads: map[string]rawhcl.RawPayload{}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	tags, ok := result.Variables["tags"].(map[string]any)
	if !ok {
		t.Fatalf("tags = %#v, want a two-key map to survive without cleanup", result.Variables["tags"])
	}
	if tags["Name"] != "x" || tags["Env"] != "prod" {
		t.Errorf("tags = %#v, want both keys intact", tags)
	}
}

func TestResolve_TFVarsOverridesEnvAndManualOverridesTFVars(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "terraform.tfvars"), `replicas = 1`)

	result, err := Resolve(Options{
		Dir:             dir,
		FilePayloads:    map[string]rawhcl.RawPayload{},
		EnvVars:         map[string]string{"TF_VAR_replicas": "2"},
		ManualOverrides: map[string]any{"replicas": "3"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if result.Variables["replicas"] != "3" {
		t.Errorf("replicas = %v, want 3 (manual override wins)", result.Variables["replicas"])
	}

	var envOrigin, manualOrigin bool
	envIndex, tfvarsIndex := -1, -1
	for i, b := range result.Sightings() {
		if b.Name == "replicas" && b.Origin == "env:TF_VAR_replicas" {
			envOrigin = true
			envIndex = i
		}
		if b.Name == "replicas" && b.Origin == filepath.Join(dir, "terraform.tfvars") {
			tfvarsIndex = i
		}
		if b.Name == "replicas" && b.Origin == "manual" {
			manualOrigin = true
		}
	}
	if !envOrigin || !manualOrigin {
		t.Errorf("expected both env and manual sightings recorded, got %#v", result.Sightings())
	}
	if tfvarsIndex <= envIndex {
		t.Errorf("terraform.tfvars sighting at %d, want after the env sighting at %d (tfvars overrides env)", tfvarsIndex, envIndex)
	}
}

func TestResolve_FullPrecedenceChain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "terraform.tfvars"), `v = "t"`)
	writeFile(t, filepath.Join(dir, "a.auto.tfvars"), `v = "a"`)

	filePayloads := map[string]rawhcl.RawPayload{
		filepath.Join(dir, "variables.tf"): {
			"variable": []any{rawhcl.Block{"v": rawhcl.RawPayload{"default": []any{"d"}}}},
		},
	}

	result, err := Resolve(Options{
		Dir:          dir,
		FilePayloads: filePayloads,
		EnvVars:      map[string]string{"TF_VAR_v": "e"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if result.Variables["v"] != "a" {
		t.Errorf("v = %v, want a (auto.tfvars beats tfvars, env, and default)", result.Variables["v"])
	}
}

func TestResolve_VarFilesOnlyAppliedInOwningDirectory(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	writeFile(t, filepath.Join(other, "extra.tfvars"), `v = "other-dir"`)
	writeFile(t, filepath.Join(dir, "extra.tfvars"), `v = "this-dir"`)

	result, err := Resolve(Options{
		Dir:          dir,
		FilePayloads: map[string]rawhcl.RawPayload{},
		VarFiles:     []string{filepath.Join(other, "extra.tfvars")},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if _, ok := result.Variables["v"]; ok {
		t.Errorf("v = %v, want unset: var-file belonging to another directory must not apply here", result.Variables["v"])
	}
}

func TestResolve_AutoTFVarsSurvivesMultiKeyMap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "extra.auto.tfvars"), `tags = { Name = "x", Env = "prod" }`)

	result, err := Resolve(Options{Dir: dir, FilePayloads: map[string]rawhcl.RawPayload{}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	tags, ok := result.Variables["tags"].(map[string]any)
	if !ok || len(tags) != 2 {
		t.Fatalf("tags = %#v, want a two-key map to survive without cleanup", result.Variables["tags"])
	}
}

func TestResolve_WinningBindingCarriesOriginTag(t *testing.T) {
	dir := t.TempDir()

	filePayloads := map[string]rawhcl.RawPayload{
		filepath.Join(dir, "variables.tf"): {
			"variable": []any{rawhcl.Block{"v": rawhcl.RawPayload{"default": []any{"d"}}}},
		},
	}

	result, err := Resolve(Options{Dir: dir, FilePayloads: filePayloads})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	winner, ok := result.Winning["v"]
	if !ok {
		t.Fatalf("expected winning binding for v")
	}
	wantOrigin := "default@" + filepath.Join(dir, "variables.tf")
	if winner.Origin != wantOrigin {
		t.Errorf("origin = %q, want %q", winner.Origin, wantOrigin)
	}
}

func TestResolve_AutoTFVarsAppliedInLexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.auto.tfvars"), `region = "first"`)
	writeFile(t, filepath.Join(dir, "b.auto.tfvars"), `region = "second"`)

	result, err := Resolve(Options{Dir: dir, FilePayloads: map[string]rawhcl.RawPayload{}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if result.Variables["region"] != "second" {
		t.Errorf("region = %v, want second (later auto.tfvars file wins)", result.Variables["region"])
	}
}
