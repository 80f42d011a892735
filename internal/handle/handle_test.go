// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package handle

import "testing"

func TestObtainGet(t *testing.T) {
	p := NewPool[int](16)
	vals := make([]*int, 0, 8)
	hs := make([]Handle, 0, 8)
	for i := 0; i < 8; i++ {
		v, h := p.Obtain()
		*v = i
		vals = append(vals, v)
		hs = append(hs, h)
	}
	for i, h := range hs {
		if h == Invalid {
			t.Fatalf("Obtain: handle %d:\nhave Invalid\nwant a valid handle", i)
		}
		got := p.Get(h)
		if got != vals[i] {
			t.Fatalf("Get: handle %d:\nhave %p\nwant %p", h, got, vals[i])
		}
		if *got != i {
			t.Fatalf("Get: handle %d:\nhave %d\nwant %d", h, *got, i)
		}
	}
}

func TestReleaseInvalidates(t *testing.T) {
	p := NewPool[int](4)
	v, h := p.Obtain()
	*v = 42
	p.Release(h)
	if got := p.Get(h); got != nil {
		t.Fatalf("Get after Release:\nhave %v\nwant nil", got)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	p := NewPool[int](4)
	_, h := p.Obtain()
	p.Release(h)
	p.Release(h) // must not panic or corrupt the free list
	if got := p.Get(h); got != nil {
		t.Fatalf("Get after double Release:\nhave %v\nwant nil", got)
	}
}

func TestInvalidHandle(t *testing.T) {
	p := NewPool[int](4)
	if got := p.Get(Invalid); got != nil {
		t.Fatalf("Get(Invalid):\nhave %v\nwant nil", got)
	}
}

func TestReuse(t *testing.T) {
	p := NewPool[int](4)
	_, h1 := p.Obtain()
	p.Release(h1)
	v2, h2 := p.Obtain()
	*v2 = 7
	if h2 != h1 {
		t.Fatalf("Obtain after Release:\nhave handle %d\nwant reused handle %d", h2, h1)
	}
	if got := p.Get(h2); got == nil || *got != 7 {
		t.Fatalf("Get(h2):\nhave %v\nwant pointer to 7", got)
	}
}

func TestGrowsPastReserve(t *testing.T) {
	p := NewPool[int](8)
	hs := make([]Handle, 0, 64)
	for i := 0; i < 64; i++ {
		_, h := p.Obtain()
		hs = append(hs, h)
	}
	seen := make(map[Handle]bool, len(hs))
	for _, h := range hs {
		if h == Invalid {
			t.Fatalf("Obtain: unexpected Invalid handle")
		}
		if seen[h] {
			t.Fatalf("Obtain: handle %d issued twice", h)
		}
		seen[h] = true
	}
}

func TestForEach(t *testing.T) {
	p := NewPool[int](8)
	want := map[Handle]int{}
	for i := 0; i < 5; i++ {
		v, h := p.Obtain()
		*v = i * 10
		want[h] = i * 10
	}
	got := map[Handle]int{}
	p.ForEach(func(h Handle, v *int) { got[h] = *v })
	if len(got) != len(want) {
		t.Fatalf("ForEach: visited %d entries, want %d", len(got), len(want))
	}
	for h, v := range want {
		if got[h] != v {
			t.Fatalf("ForEach: handle %d:\nhave %d\nwant %d", h, got[h], v)
		}
	}
}

func TestFreeAllResources(t *testing.T) {
	p := NewPool[int](8)
	_, h := p.Obtain()
	p.FreeAllResources()
	if got := p.Get(h); got != nil {
		t.Fatalf("Get after FreeAllResources:\nhave %v\nwant nil", got)
	}
	// Pool must remain usable afterwards.
	v, h2 := p.Obtain()
	*v = 1
	if got := p.Get(h2); got == nil || *got != 1 {
		t.Fatalf("Obtain after FreeAllResources failed to reinitialize pool")
	}
}
