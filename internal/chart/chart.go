// Package chart 把评分数据渲染为直方图与柱状图。
package chart

import (
	"fmt"

	"go.uber.org/multierr"
)

// Renderer 渲染两类图表。critic/audience 为 0-100 的百分制分数。
type Renderer interface {
	// RenderHistogram 输出影评人分数分布、观众分数分布，以及两者叠加的分布。
	RenderHistogram(critic, audience []int) error
	// RenderBarChart 按电影逐条对比两种分数；titles 与两组分数一一对应。
	RenderBarChart(titles []string, critic, audience []int) error
}

const (
	CriticSeries   = "Tomatometer"
	AudienceSeries = "Audience Score"
)

// Bin 是闭区间 [Lo, Hi] 内的计数。
type Bin struct {
	Lo, Hi int
	Count  int
}

func (b Bin) Label() string { return fmt.Sprintf("%d-%d", b.Lo, b.Hi) }

// Bins 按 width 把 0-100 切成等宽区间；最后一个区间包含 100（例如 90-100）。
// 超出范围的分数被截断到两端。
func Bins(scores []int, width int) []Bin {
	if width <= 0 || width > 100 {
		width = 10
	}
	n := 100 / width
	if 100%width != 0 {
		n++
	}
	bins := make([]Bin, n)
	for i := range bins {
		bins[i] = Bin{Lo: i * width, Hi: (i+1)*width - 1}
	}
	bins[n-1].Hi = 100

	for _, s := range scores {
		i := s / width
		if s < 0 {
			i = 0
		}
		if i >= n {
			i = n - 1
		}
		bins[i].Count++
	}
	return bins
}

func checkBarInput(titles []string, critic, audience []int) error {
	if len(titles) != len(critic) || len(titles) != len(audience) {
		return fmt.Errorf("柱状图数据长度不一致：titles=%d critic=%d audience=%d", len(titles), len(critic), len(audience))
	}
	return nil
}

// Multi 依次调用每个 Renderer，汇总全部错误。
type Multi []Renderer

func (m Multi) RenderHistogram(critic, audience []int) error {
	var err error
	for _, r := range m {
		err = multierr.Append(err, r.RenderHistogram(critic, audience))
	}
	return err
}

func (m Multi) RenderBarChart(titles []string, critic, audience []int) error {
	var err error
	for _, r := range m {
		err = multierr.Append(err, r.RenderBarChart(titles, critic, audience))
	}
	return err
}
