package operator

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/store"
	"github.com/zeebo/blake3"
)

// DefaultFieldManager names spacectl's writes in managedFields.
const DefaultFieldManager = "spacectl-operator"

// upsert merge-patches the desired owner references and spec onto the
// object's key, creating the object when it does not exist yet. Fields the
// desired spec leaves out (a stored token, for one) are kept.
func upsert(ctx context.Context, s store.Store, desired crds.Object, spec any, fieldManager string) (crds.Object, error) {
	key := crds.KeyOf(desired)
	patch, err := json.Marshal(map[string]any{
		"metadata": map[string]any{"ownerReferences": desired.GetObjectMeta().OwnerReferences},
		"spec":     spec,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %w", ErrPatch, key, err)
	}
	obj, err := s.Patch(ctx, key, patch, fieldManager)
	if err == nil {
		return obj, nil
	}
	if !store.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s: %w", ErrPatch, key, err)
	}
	obj, err = s.Create(ctx, desired)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrPatch, key, err)
	}
	return obj, nil
}

func patchStatus(ctx context.Context, s store.Store, key crds.Key, status any, fieldManager string) (crds.Object, error) {
	patch, err := store.StatusPatch(status)
	if err != nil {
		return nil, fmt.Errorf("%w: encode status %s: %w", ErrPatch, key, err)
	}
	obj, err := s.PatchStatus(ctx, key, patch, fieldManager)
	if store.IsNotFound(err) {
		return nil, fmt.Errorf("%w: status %s: %w", ErrNotFound, key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: status %s: %w", ErrPatch, key, err)
	}
	return obj, nil
}

// checksum is a BLAKE3 digest of parts, order-independent.
func checksum(parts ...string) string {
	sorted := slices.Clone(parts)
	slices.Sort(sorted)
	sum := blake3.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}
