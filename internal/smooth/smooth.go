// Package smooth holds one-pole parameter smoothing for control values that
// are updated once per block.
package smooth

// Float moves toward each value it is given by a fixed fraction. Lambda close
// to 1 smooths more.
type Float struct {
	lambda float32
	value  float32
}

func New(lambda, initial float32) Float {
	if lambda < 0 {
		lambda = 0
	}
	if lambda >= 1 {
		lambda = 0.999
	}
	return Float{lambda: lambda, value: initial}
}

func (s *Float) Set(v float32) {
	s.value = s.value*s.lambda + v*(1-s.lambda)
}

func (s *Float) Get() float32 { return s.value }

// Reset jumps straight to v.
func (s *Float) Reset(v float32) { s.value = v }
