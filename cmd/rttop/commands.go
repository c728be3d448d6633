package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/John-Robertt/rttop/internal/app/run"
	"github.com/John-Robertt/rttop/internal/chart"
	"github.com/John-Robertt/rttop/internal/config"
	"github.com/John-Robertt/rttop/internal/domain"
	"github.com/John-Robertt/rttop/internal/infra/fsx"
	"github.com/John-Robertt/rttop/internal/infra/logx"
	"github.com/John-Robertt/rttop/internal/store"
)

// cli 持有一次进程调用的 IO 与全局 flag；测试里替换 in/out 即可驱动完整流程。
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	// progress 为 true 时在 errOut 上输出进度（仅交互终端）。
	progress bool

	configPath  string
	logLevel    string
	db          string
	cacheFile   string
	chartOutput string

	prompts *prompter
}

// chartFlags 对应三个图表问题；显式指定的 flag 会跳过对应的提问。
type chartFlags struct {
	kind   int
	count  int
	rating string
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rttop",
		Short:         "抓取 Top 100 分类榜单中的电影评分，写入 SQLite 并绘图",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "配置文件路径（默认 ./"+config.FileName+"，可选）")
	pf.StringVar(&c.logLevel, "log-level", "", "日志级别：debug|info|warn|error")
	pf.StringVar(&c.db, "db", "", "SQLite 文件路径或 libsql:// DSN")
	pf.StringVar(&c.cacheFile, "cache", "", "页面缓存文件路径")
	pf.StringVar(&c.chartOutput, "chart-output", "", "图表输出：terminal|html|both")

	root.AddCommand(c.runCmd(), c.genresCmd(), c.chartCmd())
	return root
}

func (c *cli) runCmd() *cobra.Command {
	var (
		genre  string
		report string
		cf     chartFlags
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "选择分类 → 抓取榜单 → 写库 → 绘图",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runScrape(cmd, report, cf)
		},
	}
	cmd.Flags().StringVar(&genre, "genre", "", "固定抓取的分类名称（例如 comedy）；为空时交互选择")
	cmd.Flags().StringVar(&report, "report", "", "把本次运行的 RunReport JSON 写到该文件")
	addChartFlags(cmd, &cf)
	return cmd
}

func (c *cli) genresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "列出可选的分类菜单",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			eff, logger, err := c.setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			e, err := newEnv(eff, logger)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, e.close()) }()

			idx, err := e.scraper.GenreIndex(cmd.Context())
			if err != nil {
				return err
			}
			printGenreMenu(c.out, idx)
			return nil
		},
	}
}

func (c *cli) chartCmd() *cobra.Command {
	var cf chartFlags
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "对已有数据库绘图（不抓取）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			eff, logger, err := c.setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			st, err := store.Open(cmd.Context(), eff.DB, eff.ScorePolicy, logger)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, st.Close()) }()

			n, err := st.CountMovies(cmd.Context())
			if err != nil {
				return fmt.Errorf("读取数据库失败（请先执行 rttop run）：%w", err)
			}
			if n == 0 {
				return errors.New("数据库中没有电影，请先执行 rttop run")
			}
			return c.renderChart(cmd, eff, st, cf)
		},
	}
	addChartFlags(cmd, &cf)
	return cmd
}

func addChartFlags(cmd *cobra.Command, cf *chartFlags) {
	cmd.Flags().IntVar(&cf.kind, "chart", 0, "图表类型：1=直方图 2=柱状图")
	cmd.Flags().IntVar(&cf.count, "count", 0, "参与绘图的电影数（1-100）")
	cmd.Flags().StringVar(&cf.rating, "rating", "", "按分级过滤："+strings.Join(domain.RatingNames(), "|"))
}

// setup 合并配置并构造 logger。
func (c *cli) setup(cmd *cobra.Command) (config.EffectiveConfig, *zap.Logger, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, nil, fmt.Errorf("读取当前目录失败：%w", err)
	}

	flags := cmd.Flags()
	args := config.CLIArgs{
		ConfigPath:     c.configPath,
		DB:             c.db,
		DBSet:          flags.Changed("db"),
		CacheFile:      c.cacheFile,
		CacheFileSet:   flags.Changed("cache"),
		LogLevel:       c.logLevel,
		LogLevelSet:    flags.Changed("log-level"),
		ChartOutput:    c.chartOutput,
		ChartOutputSet: flags.Changed("chart-output"),
	}
	if f := flags.Lookup("genre"); f != nil {
		args.Genre = f.Value.String()
		args.GenreSet = f.Changed
	}

	eff, err := config.LoadEffective(cwd, args)
	if err != nil {
		return config.EffectiveConfig{}, nil, err
	}
	logger, err := logx.New(eff.LogLevel, eff.LogEncoding)
	if err != nil {
		return config.EffectiveConfig{}, nil, err
	}
	if eff.ConfigPath != "" {
		logger.Debug("读取配置文件", zap.String("path", eff.ConfigPath))
	}
	return eff, logger, nil
}

func (c *cli) runScrape(cmd *cobra.Command, report string, cf chartFlags) (err error) {
	ctx := cmd.Context()
	eff, logger, err := c.setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	e, err := newEnv(eff, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, e.close()) }()

	st, err := store.Open(ctx, eff.DB, eff.ScorePolicy, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	idx, err := e.scraper.GenreIndex(ctx)
	if err != nil {
		return err
	}
	genre, err := c.chooseGenre(idx, eff)
	if err != nil {
		return err
	}
	logger.Info("开始抓取分类", zap.String("genre", genre.Name), zap.String("url", genre.URL))

	var obs run.Observer
	if c.progress {
		ui := newProgressUI(c.errOut, eff)
		defer ui.close()
		obs = ui
	}

	rr, runErr := run.Execute(ctx, e.scraper, st, genre, obs)
	if report != "" {
		if err := writeReport(report, rr); err != nil {
			runErr = multierr.Append(runErr, fmt.Errorf("写入 report 失败：%w", err))
		}
	}
	if runErr != nil {
		return runErr
	}
	fmt.Fprintf(c.errOut, "完成：movies=%d fetched=%d cached=%d fallbacks=%d\n",
		rr.Summary.Movies, rr.Summary.Fetched, rr.Summary.Cached, rr.Summary.Fallbacks,
	)

	return c.renderChart(cmd, eff, st, cf)
}

// chooseGenre：配置/flag 固定了分类时直接查找，否则交互选择。
func (c *cli) chooseGenre(idx domain.GenreIndex, eff config.EffectiveConfig) (domain.Genre, error) {
	if idx.Len() == 0 {
		return domain.Genre{}, errors.New("分类索引为空")
	}
	if !eff.Interactive() {
		g, ok := idx.Lookup(eff.Genre)
		if !ok {
			return domain.Genre{}, fmt.Errorf("未知分类 %q（可选：%s）", eff.Genre, strings.Join(idx.Names(), ", "))
		}
		return g, nil
	}
	return c.prompter().Genre(idx)
}

func (c *cli) renderChart(cmd *cobra.Command, eff config.EffectiveConfig, src run.Source, cf chartFlags) error {
	req, err := c.chartRequest(cmd, cf)
	if err != nil {
		return err
	}
	n, err := run.Chart(cmd.Context(), src, c.renderer(eff), req)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintf(c.errOut, "分级 %s 下没有电影，图表为空\n", req.Rating)
	}
	return nil
}

func (c *cli) chartRequest(cmd *cobra.Command, cf chartFlags) (run.ChartRequest, error) {
	var req run.ChartRequest
	flags := cmd.Flags()
	p := c.prompter()

	if flags.Changed("chart") {
		req.Kind = run.ChartKind(cf.kind)
	} else {
		k, err := p.ChartKind()
		if err != nil {
			return req, err
		}
		req.Kind = k
	}

	if flags.Changed("count") {
		req.Count = cf.count
	} else {
		n, err := p.Count()
		if err != nil {
			return req, err
		}
		req.Count = n
	}

	if flags.Changed("rating") {
		r, ok := domain.RatingFromName(cf.rating)
		if !ok {
			return req, fmt.Errorf("--rating 只能是 %s，实际是 %q", strings.Join(domain.RatingNames(), "|"), cf.rating)
		}
		req.Rating = r
	} else {
		r, err := p.Rating()
		if err != nil {
			return req, err
		}
		req.Rating = r
	}

	return req, req.Validate()
}

func (c *cli) renderer(eff config.EffectiveConfig) chart.Renderer {
	term := chart.Terminal{W: c.out}
	html := chart.HTML{
		Fs:  afero.NewOsFs(),
		Dir: eff.ChartDir,
		OnWritten: func(path string) {
			fmt.Fprintf(c.errOut, "chart: %s\n", path)
		},
	}
	switch eff.ChartOutput {
	case config.ChartOutputHTML:
		return html
	case config.ChartOutputBoth:
		return chart.Multi{term, html}
	default:
		return term
	}
}

func (c *cli) prompter() *prompter {
	if c.prompts == nil {
		c.prompts = newPrompter(c.in, c.out)
	}
	return c.prompts
}

func writeReport(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFile(afero.NewOsFs(), path, b)
}
