package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("160"))
	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func (m editor) View() string {
	if m.help {
		return m.helpView()
	}

	width := m.width
	if width < 1 {
		width = 1
	}
	height := m.height - 1 // leave room for the status line
	if height < 1 {
		height = 1
	}

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	nodes := m.doc.displayNodes()
	state := m.machine.State()

	// Edges go down first so nodes draw over them.
	geoms := m.edges.Layout(nodes, m.doc.edges, m.gestureMode(), m.activeNodeID())
	for _, g := range geoms {
		fx, fy := m.cellOf(g.From)
		tx, ty := m.cellOf(g.To)
		drawLineCells(grid, fx, fy, tx, ty)
		setCell(grid, tx, ty, arrowRune(tx-fx, ty-fy))
	}

	if state.PreviewLine != nil {
		fx, fy := m.cellOf(state.PreviewLine.From)
		tx, ty := m.cellOf(state.PreviewLine.To)
		drawLineCells(grid, fx, fy, tx, ty)
	}

	for _, n := range nodes {
		m.drawNode(grid, n, n.ID == m.selectedNode)
	}

	if state.ShowAnchors {
		for _, a := range m.machine.Anchors() {
			ax, ay := m.cellOf(a.Position)
			setCell(grid, ax, ay, anchorRune(a))
		}
	}

	var b strings.Builder
	for _, row := range grid {
		b.WriteString(string(row))
		b.WriteString("\n")
	}
	b.WriteString(m.statusLine(width))
	return b.String()
}

// cellOf converts a canvas-space point to a terminal cell.
func (m editor) cellOf(p Point) (int, int) {
	s := canvasToScreen(p, Point{}, m.doc.transform)
	return int(math.Round(s.X / cellWidth)), int(math.Round(s.Y / cellHeight))
}

func (m editor) drawNode(grid [][]rune, n Node, selected bool) {
	x0, y0 := m.cellOf(Point{X: n.X, Y: n.Y})
	x1, y1 := m.cellOf(Point{X: n.X + nodeWidth, Y: n.Y + nodeHeight})
	if x1-x0 < 3 {
		x1 = x0 + 3
	}
	if y1-y0 < 2 {
		y1 = y0 + 2
	}

	tl, tr, bl, br, hr, vr := '┌', '┐', '└', '┘', '─', '│'
	if selected {
		tl, tr, bl, br, hr, vr = '╔', '╗', '╚', '╝', '═', '║'
	}

	for x := x0 + 1; x < x1; x++ {
		setCell(grid, x, y0, hr)
		setCell(grid, x, y1, hr)
	}
	for y := y0 + 1; y < y1; y++ {
		setCell(grid, x0, y, vr)
		setCell(grid, x1, y, vr)
	}
	setCell(grid, x0, y0, tl)
	setCell(grid, x1, y0, tr)
	setCell(grid, x0, y1, bl)
	setCell(grid, x1, y1, br)

	// Clear the interior so edges never show through.
	for y := y0 + 1; y < y1; y++ {
		for x := x0 + 1; x < x1; x++ {
			setCell(grid, x, y, ' ')
		}
	}

	innerW := x1 - x0 - 3
	if innerW < 1 {
		return
	}
	lines := wrapLabel(n.Label, innerW, y1-y0-1)
	for i, line := range lines {
		for j, r := range []rune(line) {
			setCell(grid, x0+2+j, y0+1+i, r)
		}
	}
}

func (m editor) statusLine(width int) string {
	var left string
	switch m.mode {
	case editorLabelInput:
		left = "label: " + m.inputText + "█"
	case editorConfirm:
		switch m.confirmWhat {
		case confirmQuit:
			left = "quit? (y/n)"
		case confirmDeleteNode:
			left = "delete node? (y/n)"
		case confirmDeleteEdge:
			left = "delete edge? (y/n)"
		}
	default:
		left = fmt.Sprintf("[%s] %s  zoom %d%%",
			m.machine.State().Mode, m.workspaceID,
			int(math.Round(m.doc.transform.Scale*100)))
		if m.sink.errText != "" {
			left += "  " + m.sink.errText
		} else if m.sink.status != "" {
			left += "  " + m.sink.status
		}
	}

	right := "? help"
	pad := width - lipgloss.Width(left) - lipgloss.Width(right)
	if pad < 1 {
		pad = 1
	}
	line := left + strings.Repeat(" ", pad) + right
	if m.sink.errText != "" && m.mode == editorNormal {
		return errorStyle.Render(line)
	}
	return statusStyle.Render(line)
}

func (m editor) helpView() string {
	help := `tangle

  mouse          click selects, drag moves a node, drag on empty space pans
  wheel          zoom at pointer
  c              toggle connect mode; drag anchor to anchor to link nodes
  esc            leave connect mode / clear selection
  a              add node at pointer
  e              edit selected node's label
  d              delete selected node (and its edges)
  click on edge  delete edge
  y / p          copy label / paste as new node
  + - 0          zoom in, out, reset
  h j k l        pan (arrow keys too)
  E              export PNG
  q              quit

press any key to return`
	return hintStyle.Render(help)
}

func setCell(grid [][]rune, x, y int, r rune) {
	if y < 0 || y >= len(grid) || x < 0 || x >= len(grid[y]) {
		return
	}
	grid[y][x] = r
}

// drawLineCells plots a Bresenham line, picking a rune from the overall slope.
func drawLineCells(grid [][]rune, x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	x, y := x0, y0
	for {
		setCell(grid, x, y, lineRune(dx, dy, sx, sy))
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func lineRune(dx, dy, sx, sy int) rune {
	switch {
	case dy == 0:
		return '─'
	case dx == 0:
		return '│'
	case dx >= -2*dy:
		return '─'
	case -dy >= 2*dx:
		return '│'
	case sx == sy:
		return '╲'
	default:
		return '╱'
	}
}

func arrowRune(dx, dy int) rune {
	if abs(dx) >= abs(dy) {
		if dx >= 0 {
			return '▶'
		}
		return '◀'
	}
	if dy >= 0 {
		return '▼'
	}
	return '▲'
}

func anchorRune(a Anchor) rune {
	switch {
	case a.IsActive:
		return '●'
	case a.IsHighlighted:
		return '◎'
	default:
		return '○'
	}
}

// wrapLabel breaks a label into at most maxLines lines of at most width runes,
// truncating the last line with an ellipsis when it does not fit.
func wrapLabel(label string, width, maxLines int) []string {
	if width < 1 || maxLines < 1 {
		return nil
	}
	words := strings.Fields(label)
	var lines []string
	var cur string
	flush := func() {
		if cur != "" {
			lines = append(lines, cur)
			cur = ""
		}
	}
	for _, w := range words {
		for len([]rune(w)) > width {
			flush()
			r := []rune(w)
			lines = append(lines, string(r[:width]))
			w = string(r[width:])
		}
		if cur == "" {
			cur = w
		} else if len([]rune(cur))+1+len([]rune(w)) <= width {
			cur += " " + w
		} else {
			flush()
			cur = w
		}
	}
	flush()
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		last := []rune(lines[maxLines-1])
		if len(last) >= width {
			last = last[:width-1]
		}
		lines[maxLines-1] = string(last) + "…"
	}
	return lines
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
