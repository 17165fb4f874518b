package main

import (
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

const (
	exportPadding   = 48.0
	exportFontSize  = 13.0
	exportArrowSize = 8.0
)

// exportPNG rasterizes the workspace at 1:1 canvas pixels, ignoring the
// current pan and zoom.
func exportPNG(path string, nodes []Node, edges []Edge) error {
	if len(nodes) == 0 {
		return errors.New("nothing to export")
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		minX = math.Min(minX, n.X)
		minY = math.Min(minY, n.Y)
		maxX = math.Max(maxX, n.X+nodeWidth)
		maxY = math.Max(maxY, n.Y+nodeHeight)
	}
	minX -= exportPadding
	minY -= exportPadding
	maxX += exportPadding
	maxY += exportPadding

	dc := gg.NewContext(int(maxX-minX), int(maxY-minY))
	dc.SetColor(color.White)
	dc.Clear()

	ttfFont, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return errors.Wrap(err, "failed to parse font")
	}
	dc.SetFontFace(truetype.NewFace(ttfFont, &truetype.Options{
		Size:    exportFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	}))

	renderer := NewEdgeRenderer()
	geoms := renderer.Layout(nodes, edges, GestureNone, "")

	// Edges first so node boxes draw over them.
	dc.SetLineWidth(1.0)
	dc.SetColor(color.Black)
	for _, g := range geoms {
		fx, fy := g.From.X-minX, g.From.Y-minY
		tx, ty := g.To.X-minX, g.To.Y-minY
		dc.DrawLine(fx, fy, tx, ty)
		dc.Stroke()

		tri := arrowhead(Point{X: fx, Y: fy}, Point{X: tx, Y: ty}, exportArrowSize)
		dc.MoveTo(tri[0].X, tri[0].Y)
		dc.LineTo(tri[1].X, tri[1].Y)
		dc.LineTo(tri[2].X, tri[2].Y)
		dc.ClosePath()
		dc.Fill()
	}

	for _, n := range nodes {
		x, y := n.X-minX, n.Y-minY
		dc.SetColor(color.White)
		dc.DrawRectangle(x, y, nodeWidth, nodeHeight)
		dc.Fill()
		dc.SetColor(color.Black)
		dc.DrawRectangle(x, y, nodeWidth, nodeHeight)
		dc.Stroke()
		dc.DrawStringWrapped(n.Label, x+nodeWidth/2, y+nodeHeight/2,
			0.5, 0.5, nodeWidth-16, 1.3, gg.AlignCenter)
	}

	return errors.Wrap(dc.SavePNG(path), "failed to save png")
}
