package analysis

import (
	"math"
	"strings"

	"github.com/san-kum/galaxysim/internal/phase"
	"gonum.org/v1/gonum/spatial/r3"
)

// View orients a projection: yaw about the vertical axis, then pitch about
// the screen's horizontal axis, both in radians.
type View struct {
	Yaw, Pitch float64
	// Extent is the half-width of the projected window in world units. Zero
	// fits the window to the data.
	Extent float64
	// HideObscured drops obscured slots, as the renderer does.
	HideObscured bool
}

// Projection is a density grid of projected slots, row 0 at the top.
type Projection struct {
	Width, Height int
	Cells         []int
	Max           int
	Extent        float64
}

func (p *Projection) At(col, row int) int {
	return p.Cells[row*p.Width+col]
}

// Project rotates every slot by v and counts the hits per cell of a
// width x height grid.
func Project(buf *phase.Buffer, v View, width, height int) *Projection {
	proj := &Projection{Width: width, Height: height, Cells: make([]int, width*height)}
	if width <= 0 || height <= 0 {
		return proj
	}

	yaw := r3.NewRotation(v.Yaw, r3.Vec{Y: 1})
	pitch := r3.NewRotation(v.Pitch, r3.Vec{X: 1})

	n := buf.Capacity()
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if v.HideObscured && buf.Obscured(i) {
			continue
		}
		x, y, z := buf.Position(i)
		q := pitch.Rotate(yaw.Rotate(r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}))
		xs = append(xs, q.X)
		ys = append(ys, q.Y)
	}

	extent := v.Extent
	if extent <= 0 {
		for i := range xs {
			extent = math.Max(extent, math.Max(math.Abs(xs[i]), math.Abs(ys[i])))
		}
		if extent == 0 {
			extent = 1
		}
		extent *= 1.05
	}
	proj.Extent = extent

	// terminal cells are about twice as tall as wide
	aspect := float64(width) / float64(height) / 2
	for i := range xs {
		col := int((xs[i]/(extent*aspect) + 1) / 2 * float64(width))
		row := int((1 - (ys[i]/extent+1)/2) * float64(height))
		if col < 0 || col >= width || row < 0 || row >= height {
			continue
		}
		k := row*width + col
		proj.Cells[k]++
		if proj.Cells[k] > proj.Max {
			proj.Max = proj.Cells[k]
		}
	}
	return proj
}

// DefaultRamp shades cells from empty to densest.
const DefaultRamp = " .:-=+*#%@"

// ASCII renders the grid with a log-scaled ramp, one line per row.
func (p *Projection) ASCII(ramp string) string {
	if ramp == "" {
		ramp = DefaultRamp
	}
	glyphs := []rune(ramp)

	var sb strings.Builder
	sb.Grow((p.Width + 1) * p.Height)
	for row := 0; row < p.Height; row++ {
		for col := 0; col < p.Width; col++ {
			sb.WriteRune(glyphs[p.Level(col, row, len(glyphs))])
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}

// Level maps a cell to one of levels shades; 0 is empty.
func (p *Projection) Level(col, row, levels int) int {
	c := p.At(col, row)
	if c == 0 || p.Max == 0 || levels < 2 {
		return 0
	}
	f := math.Log1p(float64(c)) / math.Log1p(float64(p.Max))
	l := 1 + int(f*float64(levels-2)+0.5)
	if l >= levels {
		l = levels - 1
	}
	return l
}
