package chart

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/afero"

	"github.com/John-Robertt/rttop/internal/infra/fsx"
)

const (
	HistogramFile = "histogram.html"
	BarChartFile  = "bar.html"
)

// HTML 把图表写成可在浏览器打开的 echarts 页面（每种图一页，每页三张图）。
type HTML struct {
	Fs  afero.Fs
	Dir string

	// OnWritten 在页面写出后回调（用于提示文件位置）。
	OnWritten func(path string)
}

var _ Renderer = HTML{}

func (h HTML) RenderHistogram(critic, audience []int) error {
	cb := Bins(critic, binWidth)
	ab := Bins(audience, binWidth)
	labels := make([]string, len(cb))
	for i := range cb {
		labels[i] = cb[i].Label()
	}

	page := components.NewPage()
	page.AddCharts(
		newBar(CriticSeries+" distribution", labels, false, series{CriticSeries, binCounts(cb)}),
		newBar(AudienceSeries+" distribution", labels, false, series{AudienceSeries, binCounts(ab)}),
		newBar("Stacked distribution", labels, true,
			series{CriticSeries, binCounts(cb)},
			series{AudienceSeries, binCounts(ab)},
		),
	)
	return h.write(HistogramFile, page)
}

func (h HTML) RenderBarChart(titles []string, critic, audience []int) error {
	if err := checkBarInput(titles, critic, audience); err != nil {
		return err
	}

	page := components.NewPage()
	page.AddCharts(
		newBar(CriticSeries, titles, false, series{CriticSeries, critic}),
		newBar(AudienceSeries, titles, false, series{AudienceSeries, audience}),
		newBar(CriticSeries+" vs "+AudienceSeries, titles, false,
			series{CriticSeries, critic},
			series{AudienceSeries, audience},
		),
	)
	return h.write(BarChartFile, page)
}

func (h HTML) write(name string, page *components.Page) error {
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("渲染 %s 失败：%w", name, err)
	}
	if err := fsx.WriteFileAtomic(h.Fs, h.Dir, name, buf.Bytes()); err != nil {
		return fmt.Errorf("写入 %s 失败：%w", name, err)
	}
	if h.OnWritten != nil {
		h.OnWritten(filepath.Join(h.Dir, name))
	}
	return nil
}

type series struct {
	name   string
	values []int
}

// newBar 构造一张柱状图；stack=true 时所有 series 叠在同一根柱上。
func newBar(title string, xAxis []string, stack bool, ss ...series) *charts.Bar {
	b := charts.NewBar()
	b.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithLegendOpts(opts.Legend{Show: true, Top: "bottom"}),
	)
	b.SetXAxis(xAxis)
	for _, s := range ss {
		if stack {
			b.AddSeries(s.name, barData(s.values), charts.WithBarChartOpts(opts.BarChart{Stack: "total"}))
			continue
		}
		b.AddSeries(s.name, barData(s.values))
	}
	return b
}

func barData(values []int) []opts.BarData {
	out := make([]opts.BarData, 0, len(values))
	for _, v := range values {
		out = append(out, opts.BarData{Value: v})
	}
	return out
}

func binCounts(bins []Bin) []int {
	out := make([]int, len(bins))
	for i, b := range bins {
		out[i] = b.Count
	}
	return out
}
