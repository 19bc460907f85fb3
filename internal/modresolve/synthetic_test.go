package modresolve

import (
	"testing"

	"github.com/tfload/tfload/internal/rawhcl"
	"github.com/tfload/tfload/internal/store"
	"github.com/tfload/tfload/internal/varresolve"
)

func TestAttachSyntheticVarBlocks_AddsBlockToOriginFile(t *testing.T) {
	st := store.New()
	st.Set("terraform.tfvars", rawhcl.RawPayload{})

	AttachSyntheticVarBlocks(st, []varresolve.Binding{
		{Name: "region", Value: "us-east-1", Origin: "terraform.tfvars"},
	})

	payload, ok := st.Get("terraform.tfvars")
	if !ok {
		t.Fatalf("expected terraform.tfvars to remain in the store")
	}

	blocks := payload["tf_variable"]
	if len(blocks) != 1 {
		t.Fatalf("expected one tf_variable block, got %d", len(blocks))
	}

	block, ok := blocks[0].(rawhcl.Block)
	if !ok {
		t.Fatalf("block entry is not a rawhcl.Block: %#v", blocks[0])
	}
	region, ok := block["region"].(rawhcl.RawPayload)
	if !ok {
		t.Fatalf("block[\"region\"] is not a RawPayload: %#v", block["region"])
	}
	if len(region["default"]) != 1 || region["default"][0] != "us-east-1" {
		t.Errorf("default = %#v, want [us-east-1]", region["default"])
	}
}

func TestAttachSyntheticVarBlocks_SkipsNonTFVarsOrigins(t *testing.T) {
	st := store.New()
	st.Set("variables.tf", rawhcl.RawPayload{})

	AttachSyntheticVarBlocks(st, []varresolve.Binding{
		{Name: "region", Value: "default-value", Origin: "default"},
		{Name: "region", Value: "env-value", Origin: "env:TF_VAR_region"},
	})

	payload, _ := st.Get("variables.tf")
	if len(payload["tf_variable"]) != 0 {
		t.Errorf("expected no tf_variable blocks for non-tfvars origins, got %#v", payload["tf_variable"])
	}
}

func TestAttachSyntheticVarBlocks_CreatesEntryWhenOriginFileNotInStore(t *testing.T) {
	st := store.New()

	AttachSyntheticVarBlocks(st, []varresolve.Binding{
		{Name: "region", Value: "us-west-2", Origin: "a.auto.tfvars"},
	})

	payload, ok := st.Get("a.auto.tfvars")
	if !ok {
		t.Fatalf("expected a.auto.tfvars to be created in the store")
	}
	if len(payload["tf_variable"]) != 1 {
		t.Errorf("expected one tf_variable block, got %d", len(payload["tf_variable"]))
	}
}
