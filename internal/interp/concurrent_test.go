package interp

import (
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/you-not-fish/regionc/internal/ssa"
)

func TestConcurrentAtomicAdds(t *testing.T) {
	m, box := boxModule()
	mach := newMachine(t, m)
	p := mustCall(t, mach, "new", Int(0))

	const workers, iters = 16, 200
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < iters; i++ {
				if _, err := mach.Call("incr", p); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("incr: %v", err)
	}

	got, err := mach.Load(box, p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rc := got.Field(0).Field(1).I; rc != 1+workers*iters {
		t.Errorf("rc = %d, want %d", rc, 1+workers*iters)
	}
}

func TestConcurrentAllocFree(t *testing.T) {
	m, _ := boxModule()
	mach := newMachine(t, m)

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		w := int64(w)
		g.Go(func() error {
			for i := int64(0); i < 50; i++ {
				p, err := mach.Call("new", Int(w*100+i))
				if err != nil {
					return err
				}
				v, err := mach.Call("get", p)
				if err != nil {
					return err
				}
				if v.I != w*100+i {
					t.Errorf("get = %d, want %d", v.I, w*100+i)
				}
				if _, err := mach.Call("del", p); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if s := mach.Stats(); s.Allocs != 400 || s.Live() != 0 {
		t.Errorf("stats = %+v, want 400 allocations all freed", s)
	}
}

func TestConcurrentWeakHandles(t *testing.T) {
	m := ssa.NewModule("weak")
	mach := newMachine(t, m)
	tbl := &mach.weak
	mach.mu.Lock()
	h := tbl.alloc()
	mach.mu.Unlock()

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 100; i++ {
				if _, err := mach.Call("rt_weak_acquire", Int(h)); err != nil {
					return err
				}
				alive, err := mach.Call("rt_weak_is_alive", Int(h))
				if err != nil {
					return err
				}
				if !alive.Truth() {
					t.Error("record died while only weak handles were taken")
				}
				if _, err := mach.Call("rt_weak_release", Int(h)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if s := mach.Stats(); s.WeakRecords != 1 {
		t.Errorf("weak records = %d, want 1 live record", s.WeakRecords)
	}
}
