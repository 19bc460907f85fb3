package modresolve

import (
	"strings"

	"github.com/tfload/tfload/internal/rawhcl"
	"github.com/tfload/tfload/internal/store"
	"github.com/tfload/tfload/internal/varresolve"
)

// AttachSyntheticVarBlocks attaches a synthetic "tf_variable" block, named
// after the variable, to the definition of every file a tfvars value was
// read from. It lets a downstream consumer see which tfvars file actually
// supplied a given binding without having to re-run variable resolution
// itself, the same role the reference parser's synthesized tfvars
// variable blocks play.
func AttachSyntheticVarBlocks(st *store.DefinitionStore, sightings []varresolve.Binding) {
	for _, b := range sightings {
		if !strings.Contains(b.Origin, ".tfvars") {
			continue
		}

		payload, ok := st.Get(b.Origin)
		if !ok {
			payload = rawhcl.RawPayload{}
		}

		block := rawhcl.Block{b.Name: rawhcl.RawPayload{"default": []any{b.Value}}}
		payload["tf_variable"] = append(payload["tf_variable"], block)
		st.Set(b.Origin, payload)
	}
}
