package provider

import "github.com/John-Robertt/rttop/internal/domain"

// Provider 把“站点变化”限制在 provider 包内部；核心流程只依赖统一接口与稳定的 domain 类型。
//
// 约束：
// - 解析函数必须是纯函数：相同输入 => 相同输出
// - 抓取/缓存/限速都不在 provider 内（由 Pages 与 httpx 统一实现）
// - 返回的 URL 一律是绝对地址
type Provider interface {
	Name() string
	// IndexURL 是分类索引页地址（抓取入口）。
	IndexURL() string
	// ParseGenreIndex 缺少分类容器时返回错误（整次运行失败）。
	ParseGenreIndex(html []byte) (domain.GenreIndex, error)
	// ParseGenreListing 缺少榜单表格时返回错误（整次运行失败）。
	ParseGenreListing(html []byte) ([]string, error)
	// ParseMovie 从不失败：缺失字段回退为默认值，并在第二个返回值中列出。
	ParseMovie(html []byte) (domain.MovieRecord, []domain.Fallback)
}
