package scope

// Trace is a fixed-size history of one scope channel, oldest value first.
type Trace struct {
	buf  []float32
	head int
	n    int
}

// NewTrace creates a trace holding up to size values.
func NewTrace(size int) *Trace {
	if size <= 0 {
		size = 1
	}
	return &Trace{buf: make([]float32, size)}
}

// Add appends v, dropping the oldest value when full.
func (t *Trace) Add(v float32) {
	t.buf[t.head] = v
	t.head = (t.head + 1) % len(t.buf)
	if t.n < len(t.buf) {
		t.n++
	}
}

// Len returns the number of stored values.
func (t *Trace) Len() int {
	return t.n
}

// Values copies the history into dst in chronological order and returns it.
// dst is reused when it has enough capacity.
func (t *Trace) Values(dst []float32) []float32 {
	if cap(dst) < t.n {
		dst = make([]float32, t.n)
	}
	dst = dst[:t.n]
	start := (t.head - t.n + len(t.buf)) % len(t.buf)
	for i := range t.n {
		dst[i] = t.buf[(start+i)%len(t.buf)]
	}
	return dst
}

// Downsample decimates values to at most maxPoints.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
func Downsample(dst []float32, values []float32, maxPoints int) []float32 {
	if len(values) <= maxPoints {
		if cap(dst) >= len(values) {
			dst = dst[:len(values)]
			copy(dst, values)
			return dst
		}
		result := make([]float32, len(values))
		copy(result, values)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]float32, 0, maxPoints)
	}

	step := float64(len(values)) / float64(maxPoints)
	for i := range maxPoints {
		idx := int(float64(i) * step)
		if idx < len(values) {
			dst = append(dst, values[idx])
		}
	}
	return dst
}
