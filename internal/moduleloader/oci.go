package moduleloader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote"
)

// OCIBackend fetches a module source published as an OCI artifact.
type OCIBackend struct{}

// NewOCIBackend returns an OCIBackend.
func NewOCIBackend() *OCIBackend { return &OCIBackend{} }

// Fetch copies the OCI artifact referenced by source (an "oci::<ref>"
// address) into dest.
func (b *OCIBackend) Fetch(ctx context.Context, source, dest string) (Content, error) {
	ref := strings.TrimPrefix(source, "oci::")
	if ref == "" {
		return content{loaded: false}, nil
	}

	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("moduleloader: clean oci dest %s: %w", dest, err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("moduleloader: create oci dest %s: %w", dest, err)
	}

	repo, err := remote.NewRepository(ref)
	if err != nil {
		return content{loaded: false}, nil
	}

	fs, err := file.New(dest)
	if err != nil {
		return nil, fmt.Errorf("moduleloader: open oci file store: %w", err)
	}
	defer fs.Close()

	if _, err := oras.Copy(ctx, repo, ref, fs, ref, oras.DefaultCopyOptions); err != nil {
		return content{loaded: false}, nil
	}

	return content{loaded: true, path: dest}, nil
}
