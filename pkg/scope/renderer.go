package scope

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/chewxy/math32"
)

const (
	marginLeft   = float32(44)
	marginRight  = float32(12)
	marginTop    = float32(24)
	marginBottom = float32(16)

	gridRows = 4
	gridCols = 10
)

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(320, 200)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.grid.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh redraws the grid, the legend and all traces.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	var traces [Channels][]float32
	for ch := range traces {
		traces[ch] = append([]float32(nil), r.scope.display[ch]...)
	}
	maxPoints := r.scope.maxDisplayPoints
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.grid}

	plot := plotArea{
		x: marginLeft,
		y: marginTop,
		w: math32.Max(size.Width-marginLeft-marginRight, 1),
		h: math32.Max(size.Height-marginTop-marginBottom, 1),
	}

	r.drawGrid(plot)
	r.drawLegend(plot)
	for ch, values := range traces {
		r.drawTrace(plot, ch, values, maxPoints)
	}
}

type plotArea struct {
	x, y, w, h float32
}

// point maps sample i of a trace spanning n slots and a percentage to canvas coordinates.
func (p plotArea) point(i, n int, percent float32) fyne.Position {
	var fx float32
	if n > 1 {
		fx = float32(i) / float32(n-1)
	}
	fy := math32.Min(math32.Max(percent/100, 0), 1)
	return fyne.NewPos(p.x+fx*p.w, p.y+p.h-fy*p.h)
}

func (r *scopeRenderer) drawGrid(p plotArea) {
	for i := range gridRows + 1 {
		y := p.y + float32(i)*p.h/gridRows
		r.addLine(gridColor, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))

		pct := 100 - i*100/gridRows
		text := canvas.NewText(fmt.Sprintf("%d%%", pct), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(p.x-5, y-6))
		r.objects = append(r.objects, text)
	}
	for i := range gridCols + 1 {
		x := p.x + float32(i)*p.w/gridCols
		r.addLine(gridColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))
	}
}

func (r *scopeRenderer) drawLegend(p plotArea) {
	step := p.w / Channels
	for ch := range Channels {
		text := canvas.NewText(fmt.Sprintf("CH%d", ch+1), Palette[ch])
		text.TextSize = 11
		text.TextStyle = fyne.TextStyle{Bold: true}
		text.Move(fyne.NewPos(p.x+math32.Round(float32(ch)*step), 4))
		r.objects = append(r.objects, text)
	}
}

// drawTrace draws values right-aligned so the newest point is at the right edge.
func (r *scopeRenderer) drawTrace(p plotArea, ch int, values []float32, slots int) {
	if len(values) < 2 {
		return
	}
	offset := max(slots-len(values), 0)
	prev := p.point(offset, slots, values[0])
	for i := 1; i < len(values); i++ {
		cur := p.point(offset+i, slots, values[i])
		r.addLine(Palette[ch], 1.5, prev, cur)
		prev = cur
	}
}

func (r *scopeRenderer) addLine(c color.Color, width float32, from, to fyne.Position) {
	line := canvas.NewLine(c)
	line.Position1 = from
	line.Position2 = to
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {
	// Cleanup handled by Fyne
}
