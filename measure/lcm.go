package measure

import "golang.org/x/exp/constraints"

// GCD returns the greatest common divisor of a and b
func GCD[A constraints.Unsigned](a, b A) A {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LCM returns the least common multiple of a and b. LCM(0, x) is x so a
// running fold can start from zero.
func LCM[A constraints.Unsigned](a, b A) A {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	return a / GCD(a, b) * b
}

// LCMOf folds LCM over the values, starting from 1
func LCMOf[A constraints.Unsigned](values ...A) A {
	result := A(1)
	for _, v := range values {
		result = LCM(result, v)
	}
	return result
}
