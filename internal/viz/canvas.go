package viz

import (
	"strings"

	"github.com/san-kum/galaxysim/internal/analysis"
)

// Braille cells are 2x4 dots:
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
const brailleBlank = 0x2800

var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille dot matrix of Width x Height terminal cells, i.e.
// 2*Width x 4*Height dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// DotSize returns the canvas size in dots.
func (c *Canvas) DotSize() (w, h int) {
	return c.Width * 2, c.Height * 4
}

// Set lights the dot at (x, y).
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= pixelMap[y%4][x%2]
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

// Fill lights every dot whose projection cell reaches the given shade level
// out of levels. The projection must be sized in dots.
func (c *Canvas) Fill(p *analysis.Projection, minLevel, levels int) {
	for row := 0; row < p.Height; row++ {
		for col := 0; col < p.Width; col++ {
			if l := p.Level(col, row, levels); l > 0 && l >= minLevel {
				c.Set(col, row)
			}
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}
