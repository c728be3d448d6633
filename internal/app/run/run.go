package run

import (
	"context"
	"fmt"
	"time"

	"github.com/John-Robertt/rttop/internal/chart"
	"github.com/John-Robertt/rttop/internal/domain"
	"github.com/John-Robertt/rttop/internal/provider"
	"github.com/John-Robertt/rttop/internal/store"
)

// Sink 是抓取结果的落地（生产环境为 *store.Store）。
type Sink interface {
	ResetSchema(ctx context.Context) error
	InsertMovies(ctx context.Context, recs []domain.MovieRecord) error
}

// Source 是图表数据的来源（生产环境为 *store.Store）。
type Source interface {
	Movies(ctx context.Context, f store.Filter) ([]store.Row, error)
}

// Execute 抓取 genre 榜单中的全部电影并写入 sink（先重建表）。
//
// 任何抓取失败都会终止整次运行：返回的 RunReport 只包含失败前已完成的条目。
func Execute(ctx context.Context, sc provider.Scraper, sink Sink, genre domain.Genre, obs Observer) (domain.RunReport, error) {
	recs, rr, err := Scrape(ctx, sc, genre, obs)
	if err != nil {
		return rr, err
	}
	if obs == nil {
		obs = nopObserver{}
	}

	started := time.Now()
	if err := Persist(ctx, sink, recs); err != nil {
		return rr, err
	}
	obs.OnPhaseDone("persist", map[string]any{"movies": len(recs)}, time.Since(started))
	return rr, nil
}

// Scrape 依次抓取榜单页与每个详情页（严格串行）。
func Scrape(ctx context.Context, sc provider.Scraper, genre domain.Genre, obs Observer) ([]domain.MovieRecord, domain.RunReport, error) {
	if obs == nil {
		obs = nopObserver{}
	}

	rr := domain.RunReport{
		Genre:     genre.Name,
		GenreURL:  genre.URL,
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.ItemResult, 0, 100),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	obs.OnStart(genre)

	listingStarted := time.Now()
	urls, err := sc.Listing(ctx, genre.URL)
	if err != nil {
		return nil, finish(), err
	}
	obs.OnPhaseDone("listing", map[string]any{"movies": len(urls)}, time.Since(listingStarted))

	recs := make([]domain.MovieRecord, 0, len(urls))
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return recs, finish(), err
		}
		itemStarted := time.Now()
		res, err := sc.Movie(ctx, u)
		if err != nil {
			return recs, finish(), err
		}
		it := domain.NewItemResult(i+1, res.URL, res.Source, res.Record, res.Fallbacks)
		rr.Items = append(rr.Items, it)
		recs = append(recs, res.Record)
		obs.OnItemDone(i+1, len(urls), it, time.Since(itemStarted))
	}
	return recs, finish(), nil
}

// Persist 重建表并按顺序写入全部记录。
func Persist(ctx context.Context, sink Sink, recs []domain.MovieRecord) error {
	if err := sink.ResetSchema(ctx); err != nil {
		return fmt.Errorf("重建表失败：%w", err)
	}
	if err := sink.InsertMovies(ctx, recs); err != nil {
		return fmt.Errorf("写入电影失败：%w", err)
	}
	return nil
}

// ChartKind 对应交互菜单中的 1/2。
type ChartKind int

const (
	ChartHistogram ChartKind = 1
	ChartBar       ChartKind = 2
)

const MaxChartCount = 100

// ChartRequest 描述一次可视化：图表类型、最多几部电影、按哪个分级过滤。
type ChartRequest struct {
	Kind   ChartKind
	Count  int
	Rating domain.RatingClass
}

func (r ChartRequest) Validate() error {
	if r.Kind != ChartHistogram && r.Kind != ChartBar {
		return fmt.Errorf("图表类型只能是 1 或 2，实际是 %d", r.Kind)
	}
	if r.Count < 1 || r.Count > MaxChartCount {
		return fmt.Errorf("数量必须在 1-%d 之间，实际是 %d", MaxChartCount, r.Count)
	}
	if !r.Rating.Valid() {
		return fmt.Errorf("非法分级：%d", r.Rating)
	}
	return nil
}

// Chart 读取过滤后的数据并交给 renderer；返回参与绘图的电影数。
//
// 直方图中未知分数不计入对应的分布；柱状图中未知分数画为 0。
// 没有符合条件的电影时照常渲染（空图），由调用方决定是否提示。
func Chart(ctx context.Context, src Source, r chart.Renderer, req ChartRequest) (int, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	rows, err := src.Movies(ctx, store.Filter{Rating: req.Rating, Limit: req.Count})
	if err != nil {
		return 0, fmt.Errorf("读取电影失败：%w", err)
	}

	switch req.Kind {
	case ChartHistogram:
		var critic, audience []int
		for _, row := range rows {
			if row.Critic.Valid {
				critic = append(critic, row.Critic.Value)
			}
			if row.Audience.Valid {
				audience = append(audience, row.Audience.Value)
			}
		}
		return len(rows), r.RenderHistogram(critic, audience)
	default:
		titles := make([]string, len(rows))
		critic := make([]int, len(rows))
		audience := make([]int, len(rows))
		for i, row := range rows {
			titles[i] = row.Name
			critic[i] = row.Critic.Value
			audience[i] = row.Audience.Value
		}
		return len(rows), r.RenderBarChart(titles, critic, audience)
	}
}
