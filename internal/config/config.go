package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"github.com/John-Robertt/rttop/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// FileName 是默认配置文件名；同目录下的 rttop.local.json 会覆盖其中的字段。
const FileName = "rttop.json"

const (
	DefaultProvider    = "rottentomatoes"
	DefaultBaseURL     = "https://www.rottentomatoes.com/top"
	DefaultCacheFile   = "fp_cache.json"
	DefaultDB          = "movies_rt.sqlite"
	DefaultMinInterval = time.Second
	DefaultTimeout     = 30 * time.Second
	DefaultLogLevel    = "info"
	DefaultLogEncoding = "console"
	DefaultChartOutput = ChartOutputTerminal
	DefaultChartDir    = "charts"
)

const (
	ChartOutputTerminal = "terminal"
	ChartOutputHTML     = "html"
	ChartOutputBoth     = "both"
)

// DefaultHeaders 是每个请求携带的身份请求头：工具、联系人、项目地址（可被配置文件逐项覆盖或追加）。
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":     "rttop/1.0 (+https://github.com/John-Robertt/rttop)",
		"From":           "rttop@users.noreply.github.com",
		"X-Project-Info": "https://github.com/John-Robertt/rttop",
	}
}

// CLIArgs 是 CLI 暴露的覆盖项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --genre "" 必须能把配置中的固定分类改回交互选择。
type CLIArgs struct {
	// ConfigPath 非空时该文件必须存在。
	ConfigPath string

	Genre    string
	GenreSet bool

	DB    string
	DBSet bool

	CacheFile    string
	CacheFileSet bool

	LogLevel    string
	LogLevelSet bool

	ChartOutput    string
	ChartOutputSet bool
}

// FileConfig 对应 rttop.json（JSON5：允许注释与尾逗号）。
type FileConfig struct {
	BaseURL      string            `json:"base_url"`
	Provider     string            `json:"provider"`
	CacheFile    string            `json:"cache_file"`
	WriteThrough *bool             `json:"write_through"`
	DB           string            `json:"db"`
	MinInterval  string            `json:"min_interval"`
	Timeout      string            `json:"timeout"`
	RetryMax     *int              `json:"retry_max"`
	Proxy        ProxyConfig       `json:"proxy"`
	Headers      map[string]string `json:"headers"`
	Genre        string            `json:"genre"`
	ScoreDefault string            `json:"score_default"`
	Log          LogConfig         `json:"log"`
	Chart        ChartConfig       `json:"chart"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

type LogConfig struct {
	Level    string `json:"level"`
	Encoding string `json:"encoding"`
}

type ChartConfig struct {
	Output string `json:"output"`
	Dir    string `json:"dir"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；未读取任何文件时为空。
	ConfigPath string

	Provider string
	BaseURL  string

	CacheFile    string
	WriteThrough bool
	DB           string

	MinInterval time.Duration
	Timeout     time.Duration
	RetryMax    int
	ProxyURL    string
	Headers     map[string]string

	// Genre 为空表示交互选择；非空表示固定抓取该分类。
	Genre       string
	ScorePolicy domain.ScorePolicy

	LogLevel    string
	LogEncoding string

	ChartOutput string
	ChartDir    string
}

// Interactive 表示是否需要交互选择分类。
func (c EffectiveConfig) Interactive() bool { return c.Genre == "" }

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) CLI 提供 --config：读取该文件（及同目录的 <name>.local.<ext>），两者都不存在则报错
// 2) 否则：尝试读取 <cwd>/rttop.json 与 <cwd>/rttop.local.json（都可选）
//
// 覆盖优先级：CLI > <name>.local.<ext> > <name>.<ext> > 内置默认值。
// 相对路径（cache_file/db/chart.dir）以 cwd 为基准。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, exists, err := readMerged(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	eff, err := merge(cwdAbs, cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigPath = cfgPath
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	provider := strings.ToLower(strings.TrimSpace(fc.Provider))
	if provider == "" {
		provider = DefaultProvider
	}
	if provider != DefaultProvider {
		return EffectiveConfig{}, fmt.Errorf("provider 只能是 %s，实际是 %q", DefaultProvider, provider)
	}

	baseURL := strings.TrimSpace(fc.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if err := validateHTTPURL("base_url", baseURL); err != nil {
		return EffectiveConfig{}, err
	}

	cacheFile := pick(cli.CacheFileSet, cli.CacheFile, fc.CacheFile, DefaultCacheFile)
	db := pick(cli.DBSet, cli.DB, fc.DB, DefaultDB)
	if db != ":memory:" && !isRemoteDSN(db) {
		db = absCleanFrom(cwdAbs, db)
	}

	writeThrough := true
	if fc.WriteThrough != nil {
		writeThrough = *fc.WriteThrough
	}

	minInterval, err := parseDuration("min_interval", fc.MinInterval, DefaultMinInterval)
	if err != nil {
		return EffectiveConfig{}, err
	}
	timeout, err := parseDuration("timeout", fc.Timeout, DefaultTimeout)
	if err != nil {
		return EffectiveConfig{}, err
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	retryMax := 0
	if fc.RetryMax != nil {
		retryMax = *fc.RetryMax
	}
	// 不做激进重试：范围截断到 [0, 5]。
	if retryMax < 0 {
		retryMax = 0
	}
	if retryMax > 5 {
		retryMax = 5
	}

	proxyURL := strings.TrimSpace(fc.Proxy.URL)
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 无效：%w", err)
		}
	}

	headers := DefaultHeaders()
	for k, v := range fc.Headers {
		k = strings.TrimSpace(k)
		if k == "" {
			return EffectiveConfig{}, fmt.Errorf("headers 中存在空的请求头名称")
		}
		headers[k] = strings.TrimSpace(v)
	}

	genre := strings.ToLower(strings.TrimSpace(fc.Genre))
	if cli.GenreSet {
		genre = strings.ToLower(strings.TrimSpace(cli.Genre))
	}

	policy := domain.ScorePolicy(strings.ToLower(strings.TrimSpace(fc.ScoreDefault)))
	if policy == "" {
		policy = domain.ScorePolicyZero
	}
	if !policy.Valid() {
		return EffectiveConfig{}, fmt.Errorf("score_default 只能是 zero 或 label，实际是 %q", fc.ScoreDefault)
	}

	logLevel := strings.ToLower(pick(cli.LogLevelSet, cli.LogLevel, fc.Log.Level, DefaultLogLevel))
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return EffectiveConfig{}, fmt.Errorf("log.level 只能是 debug/info/warn/error，实际是 %q", logLevel)
	}
	logEncoding := strings.ToLower(pick(false, "", fc.Log.Encoding, DefaultLogEncoding))
	if logEncoding != "console" && logEncoding != "json" {
		return EffectiveConfig{}, fmt.Errorf("log.encoding 只能是 console 或 json，实际是 %q", logEncoding)
	}

	chartOutput := strings.ToLower(pick(cli.ChartOutputSet, cli.ChartOutput, fc.Chart.Output, DefaultChartOutput))
	switch chartOutput {
	case ChartOutputTerminal, ChartOutputHTML, ChartOutputBoth:
	default:
		return EffectiveConfig{}, fmt.Errorf("chart.output 只能是 terminal/html/both，实际是 %q", chartOutput)
	}
	chartDir := pick(false, "", fc.Chart.Dir, DefaultChartDir)

	return EffectiveConfig{
		Provider:     provider,
		BaseURL:      baseURL,
		CacheFile:    absCleanFrom(cwdAbs, cacheFile),
		WriteThrough: writeThrough,
		DB:           db,
		MinInterval:  minInterval,
		Timeout:      timeout,
		RetryMax:     retryMax,
		ProxyURL:     proxyURL,
		Headers:      headers,
		Genre:        genre,
		ScorePolicy:  policy,
		LogLevel:     logLevel,
		LogEncoding:  logEncoding,
		ChartOutput:  chartOutput,
		ChartDir:     absCleanFrom(cwdAbs, chartDir),
	}, nil
}

// pick 实现“CLI > 配置文件 > 默认”的字符串取值。
func pick(cliSet bool, cliVal, fileVal, def string) string {
	if cliSet && strings.TrimSpace(cliVal) != "" {
		return strings.TrimSpace(cliVal)
	}
	if v := strings.TrimSpace(fileVal); v != "" {
		return v
	}
	return def
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s 无效：%w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s 不能为负数：%q", field, raw)
	}
	return d, nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

func isRemoteDSN(dsn string) bool {
	u, err := url.Parse(dsn)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "libsql", "http", "https", "ws", "wss":
		return u.Host != ""
	default:
		return false
	}
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// localPath 返回 <dir>/<name>.local.<ext>。
func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// readMerged 读取 path 与其 .local 变体，并把后者覆盖到前者之上。
// 返回值 exists 表示至少有一个文件存在。
func readMerged(path string) (FileConfig, bool, error) {
	base, baseExists, err := readFileConfig(path)
	if err != nil {
		return FileConfig{}, false, err
	}
	local, localExists, err := readFileConfig(localPath(path))
	if err != nil {
		return FileConfig{}, false, fmt.Errorf("%s：%w", localPath(path), err)
	}
	if localExists {
		if err := mergo.Merge(&base, local, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return FileConfig{}, false, err
		}
	}
	return base, baseExists || localExists, nil
}

// readFileConfig 读取并解析 JSON5 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json5.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
