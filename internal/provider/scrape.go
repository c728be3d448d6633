package provider

import (
	"context"
	"fmt"

	"github.com/John-Robertt/rttop/internal/domain"
)

const (
	PageIndex   = "index"
	PageListing = "listing"
	PageMovie   = "movie"

	StageFetch = "fetch"
	StageParse = "parse"
)

// Pages 是按 URL 取页面原文的来源（生产环境为 cache.Store，未命中时才走网络）。
type Pages interface {
	Get(ctx context.Context, url string) (string, error)
	Has(url string) bool
}

// Scraper 把 Pages 与 Provider 组合成三类页面的“取 + 解析”。
type Scraper struct {
	Pages    Pages
	Provider Provider
}

// MovieResult 是一个详情页的解析结果及其来源。
type MovieResult struct {
	URL       string
	Source    string // domain.SourceFetched / domain.SourceCached
	Record    domain.MovieRecord
	Fallbacks []domain.Fallback
}

func (s Scraper) GenreIndex(ctx context.Context) (domain.GenreIndex, error) {
	u := s.Provider.IndexURL()
	html, err := s.Pages.Get(ctx, u)
	if err != nil {
		return domain.GenreIndex{}, s.wrap(PageIndex, StageFetch, u, err)
	}
	idx, err := s.Provider.ParseGenreIndex([]byte(html))
	if err != nil {
		return domain.GenreIndex{}, s.wrap(PageIndex, StageParse, u, err)
	}
	return idx, nil
}

// Listing 返回某个分类榜单页中的详情页 URL（榜单顺序）。
func (s Scraper) Listing(ctx context.Context, genreURL string) ([]string, error) {
	html, err := s.Pages.Get(ctx, genreURL)
	if err != nil {
		return nil, s.wrap(PageListing, StageFetch, genreURL, err)
	}
	urls, err := s.Provider.ParseGenreListing([]byte(html))
	if err != nil {
		return nil, s.wrap(PageListing, StageParse, genreURL, err)
	}
	return urls, nil
}

// Movie 取并解析一个详情页；只有抓取失败会返回错误。
func (s Scraper) Movie(ctx context.Context, movieURL string) (MovieResult, error) {
	source := domain.SourceFetched
	if s.Pages.Has(movieURL) {
		source = domain.SourceCached
	}
	html, err := s.Pages.Get(ctx, movieURL)
	if err != nil {
		return MovieResult{}, s.wrap(PageMovie, StageFetch, movieURL, err)
	}
	rec, fallbacks := s.Provider.ParseMovie([]byte(html))
	return MovieResult{URL: movieURL, Source: source, Record: rec, Fallbacks: fallbacks}, nil
}

func (s Scraper) wrap(page, stage, url string, err error) error {
	return &Error{Provider: s.Provider.Name(), Page: page, Stage: stage, URL: url, Err: err}
}

// Error 是 provider 阶段的可追溯错误（哪个页面、哪一步、哪个 URL）。
type Error struct {
	Provider string
	Page     string // "index" / "listing" / "movie"
	Stage    string // "fetch" / "parse"
	URL      string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s page=%s stage=%s url=%s: %v", e.Provider, e.Page, e.Stage, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
