package coords

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func matricesEqual(a, b Matrix6) bool {
	for i := range a {
		if !almostEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func TestIdentityIsNeutral(t *testing.T) {
	m := Matrix6{2, 0, 0, 3, 10, -5}
	if got := m.Multiply(Identity()); !matricesEqual(got, m) {
		t.Fatalf("m.Multiply(Identity()) = %v, want %v", got, m)
	}
	if got := Identity().Multiply(m); !matricesEqual(got, m) {
		t.Fatalf("Identity().Multiply(m) = %v, want %v", got, m)
	}
}

func TestMultiplyAppliesRightOperandFirst(t *testing.T) {
	translate := Translate(10, 0)
	scale := Scale(2, 2)

	combined := scale.Multiply(translate)
	p := combined.Transform(Point{X: 1, Y: 1})

	want := scale.Transform(translate.Transform(Point{X: 1, Y: 1}))
	if p != want {
		t.Fatalf("combined transform = %v, want %v (scale-of-translate)", p, want)
	}
	if p == (Point{X: 2, Y: 2}) {
		t.Fatalf("got translate-of-scale result %v; composition order is backwards", p)
	}
}

func TestInverseRoundTrips(t *testing.T) {
	m := Matrix6{2, 1, -1, 3, 5, -7}
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("Inverse() error: %v", err)
	}
	p := Point{X: 3.5, Y: -2.25}
	roundTripped := inv.Transform(m.Transform(p))
	if !almostEqual(roundTripped.X, p.X) || !almostEqual(roundTripped.Y, p.Y) {
		t.Fatalf("round-trip through inverse = %v, want %v", roundTripped, p)
	}
}

func TestInverseSingularErrors(t *testing.T) {
	singular := Matrix6{1, 2, 2, 4, 0, 0}
	if _, err := singular.Inverse(); err == nil {
		t.Fatalf("Inverse() on a singular matrix: want error, got nil")
	}
}

func TestRotateTransform(t *testing.T) {
	r := Rotate(math.Pi / 2)
	p := r.Transform(Point{X: 1, Y: 0})
	if !almostEqual(p.X, 0) || !almostEqual(p.Y, 1) {
		t.Fatalf("Rotate(pi/2) applied to (1,0) = %v, want (0,1)", p)
	}
}
