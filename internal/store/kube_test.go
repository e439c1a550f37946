package store

import (
	"context"
	"errors"
	"testing"

	"github.com/danmuck/spacectl/internal/crds"
	"github.com/danmuck/spacectl/internal/testutil/testlog"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	k8sfake "k8s.io/client-go/kubernetes/fake"
)

func newFakeKube() *Kube {
	listKinds := map[schema.GroupVersionResource]string{}
	for _, kind := range crds.Kinds() {
		listKinds[GVR(kind)] = string(kind) + "List"
	}
	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds)
	return NewKubeFromClients(dyn, k8sfake.NewSimpleClientset())
}

func TestKubeCreateGetListRoundTrip(t *testing.T) {
	testlog.Start(t)

	ctx := context.Background()
	k := newFakeKube()
	manager := crds.NewManager("NATINGAR3", crds.FactionCosmic, "spacetraders-natingar3")
	manager.Status = &crds.ManagerStatus{Checksum: "ignored"}

	created, err := k.Create(ctx, manager)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.(*crds.Manager).Status != nil {
		t.Fatalf("create must drop status")
	}

	got, err := Get[*crds.Manager](ctx, k, crds.KeyOf(manager))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Spec.Symbol != "NATINGAR3" || got.Spec.Faction != crds.FactionCosmic {
		t.Fatalf("unexpected spec: %+v", got.Spec)
	}

	listed, err := List[*crds.Manager](ctx, k, crds.KindManager, "spacetraders-natingar3")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 manager, got %d", len(listed))
	}

	if _, err := k.Create(ctx, manager); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	missing := crds.Key{Kind: crds.KindAgent, Namespace: "spacetraders-natingar3", Name: "absent"}
	if _, err := k.Get(ctx, missing); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestKubeMergePatchSpec(t *testing.T) {
	testlog.Start(t)

	ctx := context.Background()
	k := newFakeKube()
	manager := crds.NewManager("NATINGAR3", crds.FactionCosmic, "spacetraders-natingar3")
	if _, err := k.Create(ctx, manager); err != nil {
		t.Fatalf("create: %v", err)
	}

	obj, err := k.Patch(ctx, crds.KeyOf(manager), []byte(`{"spec":{"faction":"VOID"}}`), "spacectl-test")
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if obj.(*crds.Manager).Spec.Faction != crds.FactionVoid {
		t.Fatalf("faction not patched: %+v", obj)
	}
	if _, err := k.Patch(ctx, crds.KeyOf(manager), []byte(`[]`), "spacectl-test"); !errors.Is(err, ErrInvalidPatch) {
		t.Fatalf("expected ErrInvalidPatch, got %v", err)
	}
}

func TestKubeEnsureNamespaceIsIdempotent(t *testing.T) {
	testlog.Start(t)

	k := newFakeKube()
	for i := 0; i < 2; i++ {
		if err := k.EnsureNamespace(context.Background(), "spacetraders-natingar3"); err != nil {
			t.Fatalf("ensure namespace (attempt %d): %v", i, err)
		}
	}
}
