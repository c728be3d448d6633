package rottentomatoes

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/John-Robertt/rttop/internal/domain"
)

const (
	Name           = "rottentomatoes"
	DefaultBaseURL = "https://www.rottentomatoes.com/top"
)

// ErrContainerMissing 表示页面缺少必需的结构（分类列表 / 榜单表格），通常意味着站点改版或被拦截。
var ErrContainerMissing = errors.New("页面缺少必需的容器")

// Provider 实现 Rotten Tomatoes 榜单站点的 HTML 解析。
//
// 页面结构：
// - 索引页：ul.genrelist > li > a[href]
// - 榜单页：table.table 的每一行（首行为表头）第一个 a[href]
// - 详情页：h1.scoreboard__title 与 .scoreboard 元素上的 rating/tomatometerscore/audiencescore 属性
type Provider struct {
	// BaseURL 是索引页地址；为空时使用 DefaultBaseURL。相对链接按其 origin 解析。
	BaseURL string
}

func (Provider) Name() string { return Name }

func (p Provider) IndexURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return u
}

// origin 返回 scheme://host/，所有站内相对链接都以它为基准。
func (p Provider) origin() string {
	u, err := url.Parse(p.IndexURL())
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "https://www.rottentomatoes.com/"
	}
	return u.Scheme + "://" + u.Host + "/"
}

func (p Provider) ParseGenreIndex(b []byte) (domain.GenreIndex, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return domain.GenreIndex{}, err
	}

	list := doc.Find("ul.genrelist").First()
	if list.Length() == 0 {
		return domain.GenreIndex{}, fmt.Errorf("%w：ul.genrelist", ErrContainerMissing)
	}

	var idx domain.GenreIndex
	base := p.origin()
	list.Find("li").Each(func(_ int, li *goquery.Selection) {
		href, ok := li.Find("a").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		name := strings.ToLower(normSpace(li.Text()))
		if name == "" {
			return
		}
		idx.Add(name, resolveURL(base, href))
	})
	return idx, nil
}

func (p Provider) ParseGenreListing(b []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	table := doc.Find("table.table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w：table.table", ErrContainerMissing)
	}

	base := p.origin()
	urls := make([]string, 0, 100)
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			// 首行是表头。
			return
		}
		href, ok := tr.Find("a").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		urls = append(urls, resolveURL(base, href))
	})
	return urls, nil
}

func (Provider) ParseMovie(b []byte) (domain.MovieRecord, []domain.Fallback) {
	var fallbacks []domain.Fallback

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		// html.Parse 几乎不会失败；真失败时按“全部字段缺失”处理。
		rec := domain.NewMovieRecord(domain.DefaultTitle, domain.DefaultRatingText, domain.Score{}, domain.Score{})
		return rec, []domain.Fallback{domain.FallbackTitle, domain.FallbackRating, domain.FallbackCritic, domain.FallbackAudience}
	}

	title := normSpace(doc.Find("h1.scoreboard__title").First().Text())
	if title == "" {
		title = domain.DefaultTitle
		fallbacks = append(fallbacks, domain.FallbackTitle)
	} else {
		// Caser 有内部状态，不能跨 goroutine 共享。
		title = cases.Title(language.Und).String(title)
	}

	var board *html.Node
	if sel := doc.Find(".scoreboard").First(); sel.Length() > 0 {
		board = sel.Get(0)
	}

	// 分级原样交给 ParseRating：只有精确的 G/PG/PG-13/R 才映射到 1-4。
	rating, ok := attr(board, "rating")
	if !ok || strings.TrimSpace(rating) == "" {
		rating = domain.DefaultRatingText
		fallbacks = append(fallbacks, domain.FallbackRating)
	}

	critic, ok := scoreAttr(board, "tomatometerscore")
	if !ok {
		fallbacks = append(fallbacks, domain.FallbackCritic)
	}
	audience, ok := scoreAttr(board, "audiencescore")
	if !ok {
		fallbacks = append(fallbacks, domain.FallbackAudience)
	}

	return domain.NewMovieRecord(title, rating, critic, audience), fallbacks
}

// attr 在元素的属性表中按名称（大小写不敏感）查找。
func attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// scoreAttr 读取 0-100 的整数分数；缺失、非整数或越界都视为未知。
func scoreAttr(n *html.Node, key string) (domain.Score, bool) {
	v, ok := attr(n, key)
	if !ok {
		return domain.Score{}, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || i < 0 || i > 100 {
		return domain.Score{}, false
	}
	return domain.KnownScore(i), true
}

const normalizeFlags = purell.FlagsSafe | purell.FlagRemoveDotSegments | purell.FlagRemoveDuplicateSlashes

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return purell.NormalizeURL(bu.ResolveReference(ru), normalizeFlags)
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
