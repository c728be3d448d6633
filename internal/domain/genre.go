package domain

import "strings"

// Genre 是某个榜单分类（名称已小写）及其榜单页绝对 URL。
type Genre struct {
	Name string
	URL  string
}

// GenreIndex 是有序的分类表：保留页面中的出现顺序（菜单编号依赖该顺序），同时支持按名称查找。
type GenreIndex struct {
	items []Genre
	pos   map[string]int
}

// Add 追加一个分类。重名时覆盖 URL，但位置保持首次出现的位置。
func (g *GenreIndex) Add(name, url string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if g.pos == nil {
		g.pos = make(map[string]int)
	}
	if i, ok := g.pos[name]; ok {
		g.items[i].URL = url
		return
	}
	g.pos[name] = len(g.items)
	g.items = append(g.items, Genre{Name: name, URL: url})
}

func (g GenreIndex) Len() int { return len(g.items) }

// Genres 返回分类列表的副本。
func (g GenreIndex) Genres() []Genre {
	return append([]Genre(nil), g.items...)
}

// Names 按顺序返回分类名称。
func (g GenreIndex) Names() []string {
	out := make([]string, 0, len(g.items))
	for _, it := range g.items {
		out = append(out, it.Name)
	}
	return out
}

// Lookup 按名称查找（大小写不敏感）。
func (g GenreIndex) Lookup(name string) (Genre, bool) {
	i, ok := g.pos[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Genre{}, false
	}
	return g.items[i], true
}

// At 按 1 起始的菜单编号取分类。
func (g GenreIndex) At(n int) (Genre, bool) {
	if n < 1 || n > len(g.items) {
		return Genre{}, false
	}
	return g.items[n-1], true
}
