package credential

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/danmuck/spacectl/internal/game/gametest"
	"github.com/danmuck/spacectl/internal/testutil/testlog"
)

func TestCellStartsEmpty(t *testing.T) {
	testlog.Start(t)

	var c Cell
	if _, ok := c.Load(); ok {
		t.Fatalf("zero cell must be empty")
	}
	if _, err := c.Require(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if c.Snapshot().Published {
		t.Fatalf("snapshot must report unpublished")
	}
}

func TestCellPublishOverwritesAndClear(t *testing.T) {
	testlog.Start(t)

	fake := gametest.NewFake()
	c := NewCell()
	first := fake.Authenticate("a")
	second := fake.Authenticate("b")

	c.Publish("natingar3", first)
	c.Publish("natingar3", second)
	got, ok := c.Load()
	if !ok || got != second {
		t.Fatalf("expected latest session")
	}
	snap := c.Snapshot()
	if !snap.Published || snap.Agent != "natingar3" || snap.PublishedAt.IsZero() {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	c.Clear()
	if _, ok := c.Load(); ok {
		t.Fatalf("expected empty after clear")
	}
}

func TestCellConcurrentReadersAndWriter(t *testing.T) {
	testlog.Start(t)

	fake := gametest.NewFake()
	c := NewCell()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Load()
				c.Snapshot()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 200; j++ {
			c.Publish("natingar3", fake.Authenticate(fmt.Sprintf("tok-%d", j)))
		}
	}()
	wg.Wait()

	if _, ok := c.Load(); !ok {
		t.Fatalf("expected published session after writer finished")
	}
}
