// Package pruner trims over-quota inventory back toward an even split.
package pruner

// EvenSplit divides target into n near-equal parts. The first target%n parts
// get one extra. The parts always sum to target and differ by at most one.
func EvenSplit(target, n int) []int {
	if n <= 0 {
		return nil
	}
	if target < 0 {
		target = 0
	}
	base, rem := target/n, target%n
	out := make([]int, n)
	for i := range out {
		out[i] = base
		if i < rem {
			out[i]++
		}
	}
	return out
}
