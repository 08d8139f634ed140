package measure

// Quant is a position or duration on the rhythmic grid, counted in
// subdivisions of a measure. Go's integer operators give the pointwise
// arithmetic; comparisons are exact.
type Quant uint32

// Uint32 returns the raw count
func (q Quant) Uint32() uint32 {
	return uint32(q)
}

// Span calls fn for every quant in (from, to], in order
func Span(from, to Quant, fn func(Quant)) {
	for q := from + 1; q <= to && q > from; q++ {
		fn(q)
	}
}
