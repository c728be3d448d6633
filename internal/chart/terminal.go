package chart

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	defaultBarWidth = 40
	binWidth        = 10

	criticGlyph   = "█"
	audienceGlyph = "▒"
)

// Terminal 用 go-pretty 表格在终端里画图：每行一个区间/一部电影，条形长度按比例缩放。
type Terminal struct {
	W io.Writer
	// BarWidth 是最长条形的字符数；<=0 时为 40。
	BarWidth int
}

var _ Renderer = Terminal{}

func (t Terminal) width() int {
	if t.BarWidth <= 0 {
		return defaultBarWidth
	}
	return t.BarWidth
}

func (t Terminal) RenderHistogram(critic, audience []int) error {
	cb := Bins(critic, binWidth)
	ab := Bins(audience, binWidth)

	max := 0
	for i := range cb {
		if total := cb[i].Count + ab[i].Count; total > max {
			max = total
		}
	}

	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("%s / %s distribution (n=%d)", CriticSeries, AudienceSeries, len(critic)))
	tw.AppendHeader(table.Row{"Score", CriticSeries, "", AudienceSeries, "", "Stacked"})
	for i := range cb {
		c, a := cb[i].Count, ab[i].Count
		tw.AppendRow(table.Row{
			cb[i].Label(),
			c, bar(criticGlyph, c, max, t.width()),
			a, bar(audienceGlyph, a, max, t.width()),
			bar(criticGlyph, c, max, t.width()) + bar(audienceGlyph, a, max, t.width()),
		})
	}
	_, err := fmt.Fprintln(t.W, render(tw))
	return err
}

func (t Terminal) RenderBarChart(titles []string, critic, audience []int) error {
	if err := checkBarInput(titles, critic, audience); err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("%s vs %s", CriticSeries, AudienceSeries))
	tw.AppendHeader(table.Row{"#", "Title", CriticSeries, "", AudienceSeries, ""})
	for i, title := range titles {
		tw.AppendRow(table.Row{
			i + 1, title,
			fmt.Sprintf("%d%%", critic[i]), bar(criticGlyph, critic[i], 100, t.width()),
			fmt.Sprintf("%d%%", audience[i]), bar(audienceGlyph, audience[i], 100, t.width()),
		})
	}
	_, err := fmt.Fprintln(t.W, render(tw))
	return err
}

// render 使用圆角样式；表头保持原样，与系列名称一致。
func render(tw table.Writer) string {
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	return tw.Render()
}

// bar 返回按 v/max 缩放到 width 的条形；非零值至少占一格。
func bar(glyph string, v, max, width int) string {
	if v <= 0 || max <= 0 {
		return ""
	}
	n := v * width / max
	if n == 0 {
		n = 1
	}
	if n > width {
		n = width
	}
	return strings.Repeat(glyph, n)
}
