package modresolve

import "testing"

func TestIsAcceptableModuleParam(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"plain scalar", "us-east-1", true},
		{"interpolation template", "${var.region}", false},
		{"bare var reference", "var.region", false},
		{"bare local reference", "local.name", false},
		{"bare module reference", "module.vpc.id", false},
		{"nested list with reference", []any{"ok", "var.x"}, false},
		{"nested map with reference", map[string]any{"k": "local.y"}, false},
		{"nested map all clean", map[string]any{"k": "v"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAcceptableModuleParam(tt.value); got != tt.want {
				t.Errorf("isAcceptableModuleParam(%#v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestIsAcceptableModuleCall(t *testing.T) {
	ok := map[string]any{"source": "./mod", "name": "static"}
	if !isAcceptableModuleCall(ok) {
		t.Errorf("expected call with only static params to be acceptable")
	}

	pending := map[string]any{"source": "./mod", "name": "${module.other.value}"}
	if isAcceptableModuleCall(pending) {
		t.Errorf("expected call referencing another module's output to be unacceptable")
	}
}
