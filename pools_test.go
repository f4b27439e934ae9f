package cfr

import (
	"testing"
)

func TestFloatSlicePool_ZeroesReusedSlices(t *testing.T) {
	pool := &floatSlicePool{}
	v := pool.alloc(3)
	v[0], v[1], v[2] = 1, 2, 3
	pool.free(v)

	w := pool.alloc(4)
	if len(w) != 4 {
		t.Fatalf("expected length 4, got %d", len(w))
	}
	for i, x := range w {
		if x != 0 {
			t.Errorf("w[%d] = %v, expected 0", i, x)
		}
	}
}

func TestBoolSlicePool_ZeroesReusedSlices(t *testing.T) {
	pool := &boolSlicePool{}
	v := pool.alloc(2)
	v[0], v[1] = true, true
	pool.free(v)

	for i, x := range pool.alloc(2) {
		if x {
			t.Errorf("w[%d] should be false", i)
		}
	}
}

func BenchmarkFloatSlicePoolAllocFree(b *testing.B) {
	pool := &floatSlicePool{}
	for i := 0; i < b.N; i++ {
		v := pool.alloc(10)
		pool.free(v)
	}
}
