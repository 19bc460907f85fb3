package rawhcl

import (
	"encoding/json"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/tfload/tfload/internal/terraform/eval"
)

// convertFile converts a parsed HCL file into a RawPayload. The file's
// top-level hclsyntax.Body is walked generically — there is no schema to
// apply PartialContent against, since the block types accepted here are
// not known ahead of time. source holds the file's raw bytes, used to
// recover verbatim expression text when evaluation fails.
func convertFile(file *hcl.File, source []byte) (RawPayload, bool) {
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, false
	}

	return convertBody(body, source), true
}

// convertBody converts one hclsyntax.Body into a RawPayload-shaped map:
// every attribute becomes a single-element []any, and every nested block
// is grouped by its block type into an ordered list, wrapped once per
// label via wrapBlock.
func convertBody(body *hclsyntax.Body, source []byte) RawPayload {
	result := make(RawPayload)

	for name, attr := range body.Attributes {
		result[name] = []any{convertExpr(attr.Expr, source)}
	}

	for _, block := range body.Blocks {
		result[block.Type] = append(result[block.Type], wrapBlock(block, source))
	}

	return result
}

// wrapBlock converts a single hclsyntax.Block into its Block representation,
// nesting one map level per label: resource "aws_s3_bucket" "b" {...}
// becomes {"aws_s3_bucket": {"b": {...attributes and nested blocks...}}}.
func wrapBlock(block *hclsyntax.Block, source []byte) any {
	inner := any(convertBody(block.Body, source))

	for i := len(block.Labels) - 1; i >= 0; i-- {
		inner = Block{block.Labels[i]: inner}
	}

	return inner
}

// convertExpr evaluates an attribute expression with no variables or
// locals bound. When it evaluates cleanly, the native Go value is
// returned. Otherwise — typically because the expression references
// var/local/module or another identifier not present in this bare
// context — the expression's original source text is returned verbatim,
// mirroring how the reference implementation falls back to a raw
// "${...}" template for anything it cannot resolve up front.
func convertExpr(expr hclsyntax.Expression, source []byte) any {
	ctx := &hcl.EvalContext{Functions: eval.Functions()}

	val, diags := expr.Value(ctx)
	if diags.HasErrors() || !val.IsWhollyKnown() {
		return sourceText(expr, source)
	}

	native, err := ctyToNative(val)
	if err != nil {
		return sourceText(expr, source)
	}

	return native
}

// sourceText renders an expression's original source bytes, trimmed to the
// expression's own range.
func sourceText(expr hclsyntax.Expression, source []byte) string {
	return string(expr.Range().SliceBytes(source))
}

// ctyToNative converts a cty.Value into a plain Go value tree made of
// string, float64, bool, nil, []any, and map[string]any — the shapes
// TypeNormalizer and the JSON round-trip expect. It goes by way of
// encoding/json, the same indirection the normalize package's final
// pass uses, so both stages agree on one canonical native shape.
func ctyToNative(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}

	raw, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return nil, err
	}

	var native any
	if err := json.Unmarshal(raw, &native); err != nil {
		return nil, err
	}

	return native, nil
}
