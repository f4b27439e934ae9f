package cfr

// floatSlicePool recycles the per-node scratch slices of a traversal.
// It is not safe for concurrent use; each traversal owns one.
type floatSlicePool struct {
	pool [][]float64
}

func (p *floatSlicePool) alloc(n int) []float64 {
	if len(p.pool) > 0 {
		m := len(p.pool)
		next := p.pool[m-1]
		p.pool = p.pool[:m-1]
		return append(next, make([]float64, n)...)
	}

	return make([]float64, n)
}

func (p *floatSlicePool) free(s []float64) {
	if cap(s) > 0 {
		p.pool = append(p.pool, s[:0])
	}
}

type boolSlicePool struct {
	pool [][]bool
}

func (p *boolSlicePool) alloc(n int) []bool {
	if len(p.pool) > 0 {
		m := len(p.pool)
		next := p.pool[m-1]
		p.pool = p.pool[:m-1]
		return append(next, make([]bool, n)...)
	}

	return make([]bool, n)
}

func (p *boolSlicePool) free(s []bool) {
	if cap(s) > 0 {
		p.pool = append(p.pool, s[:0])
	}
}
