package filter

import (
	"testing"

	"github.com/tfload/tfload/internal/discovery"
)

func TestGlobFilter_Match(t *testing.T) {
	tests := []struct {
		name    string
		exclude []string
		include []string
		path    string
		want    bool
	}{
		{
			name:    "no filters - include all",
			exclude: nil,
			include: nil,
			path:    "network/stage/eu-central-1/vpc",
			want:    true,
		},
		{
			name:    "exact exclude match",
			exclude: []string{"network/stage/eu-central-1/vpc"},
			include: nil,
			path:    "network/stage/eu-central-1/vpc",
			want:    false,
		},
		{
			name:    "wildcard exclude - all regions",
			exclude: []string{"network/*/eu-north-1/*"},
			include: nil,
			path:    "network/stage/eu-north-1/vpc",
			want:    false,
		},
		{
			name:    "wildcard exclude - different region passes",
			exclude: []string{"network/*/eu-north-1/*"},
			include: nil,
			path:    "network/stage/eu-central-1/vpc",
			want:    true,
		},
		{
			name:    "include only specific service",
			exclude: nil,
			include: []string{"network/*/*/*/*"},
			path:    "other/stage/eu-central-1/vpc",
			want:    false,
		},
		{
			name:    "include only specific service - matches",
			exclude: nil,
			include: []string{"network/*/*/*"},
			path:    "network/stage/eu-central-1/vpc",
			want:    true,
		},
		{
			name:    "exclude takes precedence",
			exclude: []string{"network/stage/*/*"},
			include: []string{"network/*/*/*"},
			path:    "network/stage/eu-central-1/vpc",
			want:    false,
		},
		{
			name:    "wildcard module name",
			exclude: []string{"*/*/eu-north-1/*"},
			include: nil,
			path:    "any/env/eu-north-1/module",
			want:    false,
		},
		{
			name:    "doublestar exclude",
			exclude: []string{"**/.terraform/**"},
			include: nil,
			path:    "network/vpc/.terraform/providers",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewGlobFilter(tt.exclude, tt.include)
			got := f.Match(tt.path)
			if got != tt.want {
				t.Errorf("GlobFilter.Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGlobFilter_FilterDirs(t *testing.T) {
	dirs := []discovery.Dir{
		{RelativePath: "network/stage/eu-central-1/vpc"},
		{RelativePath: "network/stage/eu-north-1/vpc"},
		{RelativePath: "network/prod/eu-central-1/vpc"},
		{RelativePath: "other/stage/eu-central-1/vpc"},
	}

	f := NewGlobFilter([]string{"network/*/eu-north-1/*"}, nil)
	filtered := f.FilterDirs(dirs)

	if len(filtered) != 3 {
		t.Errorf("expected 3 dirs after filter, got %d", len(filtered))
	}

	for _, d := range filtered {
		if d.RelativePath == "network/stage/eu-north-1/vpc" {
			t.Error("eu-north-1 should be excluded")
		}
	}
}

func TestExcluder_MatchReportsSkip(t *testing.T) {
	e := NewExcluder([]string{"skip"})

	if !e.Match("skip") {
		t.Errorf("Excluder.Match(skip) = false, want true (directory should be skipped)")
	}
	if e.Match("keep") {
		t.Errorf("Excluder.Match(keep) = true, want false (directory should be walked)")
	}
}

func TestDoubleStarGlob(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"network/**", "network/stage/eu-central-1/vpc", true},
		{"network/**", "other/stage/eu-central-1/vpc", false},
		{"**/vpc", "network/stage/eu-central-1/vpc", true},
		{"**/vpc", "network/stage/eu-central-1/eks", false},
		{"network/**/vpc", "network/stage/eu-central-1/vpc", true},
		{"network/**/vpc", "network/vpc", true},
	}

	for _, tt := range tests {
		got := matchGlob(tt.pattern, tt.path)
		if got != tt.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}
