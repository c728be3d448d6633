package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tcnksm/go-input"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/John-Robertt/rttop/internal/app/run"
	"github.com/John-Robertt/rttop/internal/domain"
)

const (
	genreMenuTitle = "Top 100 Movie Lists"
	genreQuestion  = "Please input the number of the Top 100 list you are interested in"
	chartQuestion  = "Please choose a chart: 1 = score histogram, 2 = bar chart per movie"
	countQuestion  = "How many movies do you want to plot? (1-100)"
)

// prompter 封装所有交互提问；非法输入一律原地重问，直到合法或输入结束。
type prompter struct {
	ui  *input.UI
	in  *lineReader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	lr := &lineReader{br: bufio.NewReader(in)}
	return &prompter{ui: &input.UI{Reader: lr, Writer: out}, in: lr, out: out}
}

func (p *prompter) ask(query string, validate input.ValidateFunc) (string, error) {
	for {
		ans, err := p.ui.Ask(query, &input.Options{
			Required:     true,
			HideOrder:    true,
			ValidateFunc: validate,
		})
		if err == nil {
			return strings.TrimSpace(ans), nil
		}
		if errors.Is(err, input.ErrInterrupted) {
			return "", err
		}
		if p.in.eof {
			return "", fmt.Errorf("输入已结束：%w", io.ErrUnexpectedEOF)
		}
		fmt.Fprintf(p.out, "%v\n\n", err)
	}
}

// lineReader 每次 Read 最多返回一行。go-input 每次提问都新建 bufio.Reader，
// 管道输入若一次读出多行，后面的答案会丢失。
type lineReader struct {
	br  *bufio.Reader
	eof bool
}

func (r *lineReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, err := r.br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
			}
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		p[n] = b
		n++
		if b == '\n' {
			break
		}
	}
	return n, nil
}

// Genre 打印分类菜单并读取编号。
func (p *prompter) Genre(idx domain.GenreIndex) (domain.Genre, error) {
	printGenreMenu(p.out, idx)
	ans, err := p.ask(genreQuestion, choiceValidator(1, idx.Len()))
	if err != nil {
		return domain.Genre{}, err
	}
	n, _ := strconv.Atoi(ans)
	g, _ := idx.At(n)
	return g, nil
}

func (p *prompter) ChartKind() (run.ChartKind, error) {
	ans, err := p.ask(chartQuestion, choiceValidator(int(run.ChartHistogram), int(run.ChartBar)))
	if err != nil {
		return 0, err
	}
	n, _ := strconv.Atoi(ans)
	return run.ChartKind(n), nil
}

func (p *prompter) Count() (int, error) {
	ans, err := p.ask(countQuestion, choiceValidator(1, run.MaxChartCount))
	if err != nil {
		return 0, err
	}
	n, _ := strconv.Atoi(ans)
	return n, nil
}

func (p *prompter) Rating() (domain.RatingClass, error) {
	q := fmt.Sprintf("Which rating do you want to plot? (%s)", strings.Join(domain.RatingNames(), ", "))
	ans, err := p.ask(q, validateRating)
	if err != nil {
		return 0, err
	}
	r, _ := domain.RatingFromName(ans)
	return r, nil
}

// printGenreMenu 输出 1 起始的编号菜单，名称按标题大小写显示。
func printGenreMenu(w io.Writer, idx domain.GenreIndex) {
	caser := cases.Title(language.English)
	fmt.Fprintln(w, genreMenuTitle)
	for i, name := range idx.Names() {
		fmt.Fprintf(w, "%3d. %s\n", i+1, caser.String(name))
	}
	fmt.Fprintln(w)
}

// choiceValidator 接受 [lo, hi] 内的十进制整数。
func choiceValidator(lo, hi int) input.ValidateFunc {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("please input a number between %d and %d", lo, hi)
		}
		if n < lo || n > hi {
			return fmt.Errorf("%d is out of range %d-%d", n, lo, hi)
		}
		return nil
	}
}

func validateRating(s string) error {
	if _, ok := domain.RatingFromName(s); !ok {
		return fmt.Errorf("rating must be one of: %s", strings.Join(domain.RatingNames(), ", "))
	}
	return nil
}
