package tui

import "math"

// sparkBlocks are the eight block heights used by RenderSparkline.
var sparkBlocks = [8]rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RingBuffer is a fixed-capacity history of float64 samples.
type RingBuffer struct {
	data  []float64
	head  int
	count int
}

// NewRingBuffer creates a ring buffer holding up to capacity samples.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{data: make([]float64, max(capacity, 1))}
}

// Push appends v, dropping the oldest sample when full.
func (r *RingBuffer) Push(v float64) {
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	r.count = min(r.count+1, len(r.data))
}

// Len returns the number of stored samples.
func (r *RingBuffer) Len() int { return r.count }

// Cap returns the capacity.
func (r *RingBuffer) Cap() int { return len(r.data) }

// Last returns the newest sample, or 0 when empty.
func (r *RingBuffer) Last() float64 {
	if r.count == 0 {
		return 0
	}
	return r.data[(r.head-1+len(r.data))%len(r.data)]
}

// Max returns the largest stored sample, or 0 when empty.
func (r *RingBuffer) Max() float64 {
	peak := 0.0
	for _, v := range r.Slice() {
		peak = math.Max(peak, v)
	}
	return peak
}

// Slice returns the samples oldest first.
func (r *RingBuffer) Slice() []float64 {
	if r.count == 0 {
		return nil
	}
	out := make([]float64, r.count)
	start := (r.head - r.count + len(r.data)) % len(r.data)
	for i := range out {
		out[i] = r.data[(start+i)%len(r.data)]
	}
	return out
}

// Resize changes the capacity and keeps the newest samples that fit.
func (r *RingBuffer) Resize(capacity int) {
	capacity = max(capacity, 1)
	if capacity == len(r.data) {
		return
	}
	kept := r.Slice()
	if len(kept) > capacity {
		kept = kept[len(kept)-capacity:]
	}
	r.data = make([]float64, capacity)
	r.head, r.count = 0, 0
	for _, v := range kept {
		r.Push(v)
	}
}

// Reset drops every sample.
func (r *RingBuffer) Reset() {
	r.head, r.count = 0, 0
}

// RenderSparkline draws values as block characters scaled to [0, ceiling].
// Values outside the range are clamped. A non-positive ceiling renders the
// lowest block for every value.
func RenderSparkline(values []float64, ceiling float64) string {
	if len(values) == 0 {
		return ""
	}
	out := make([]rune, len(values))
	for i, v := range values {
		level := 0
		if ceiling > 0 {
			level = int(clamp(v/ceiling, 0, 1) * float64(len(sparkBlocks)-1))
		}
		out[i] = sparkBlocks[level]
	}
	return string(out)
}

// brailleBits holds the dot bit for (column, row) inside one braille cell.
var brailleBits = [2][4]rune{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// RenderBrailleChart plots percentages (0..100) on a braille dot grid of
// width cells by rows lines. The newest value sits on the right edge.
func RenderBrailleChart(values []float64, width, rows int) []string {
	if width <= 0 || rows <= 0 || len(values) == 0 {
		return nil
	}
	dotCols, dotRows := width*2, rows*4

	grid := make([][]rune, rows)
	for r := range grid {
		grid[r] = make([]rune, width)
		for c := range grid[r] {
			grid[r][c] = 0x2800
		}
	}

	if len(values) > dotCols {
		values = values[len(values)-dotCols:]
	}
	offset := dotCols - len(values)
	for i, v := range values {
		x := offset + i
		y := dotRows - 1 - int(clamp(v, 0, 100)/100*float64(dotRows-1))
		grid[y/4][x/2] |= brailleBits[x%2][y%4]
	}

	lines := make([]string, rows)
	for r := range grid {
		lines[r] = string(grid[r])
	}
	return lines
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
