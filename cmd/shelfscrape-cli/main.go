package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/briandowns/spinner"
	charmlog "github.com/charmbracelet/log"
	"github.com/use-agent/shelfscrape/config"
	"github.com/use-agent/shelfscrape/models"
	"github.com/use-agent/shelfscrape/scraper"
	"github.com/use-agent/shelfscrape/service"
)

// CLI flags structure
type CLI struct {
	URL      string        `arg:"" help:"Catalog or product page to scrape."`
	Format   string        `help:"Export format: csv, xlsx or json." default:"csv" short:"f"`
	All      bool          `help:"Walk every page of a paginated listing." short:"a"`
	Fields   []string      `help:"Fields to export, in column order (default: all)." sep:"," short:"F"`
	Output   string        `help:"Output file (default: shelfscrape-products.<format>)." short:"o"`
	HTMLFile string        `help:"Read the starting page from this file instead of opening a browser." name:"html" type:"existingfile"`
	Stealth  bool          `help:"Enable anti-bot evasions in the browser."`
	Timeout  time.Duration `help:"Timeout for opening the first page." default:"30s"`
	Debug    bool          `help:"Enable debug logging."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("shelfscrape-cli"),
		kong.Description("Extract product records from a shop page into CSV, XLSX or JSON."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(cli.Run())
}

// Run performs one scrape and writes the export to disk.
func (c *CLI) Run() error {
	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "shelfscrape",
	})
	if c.Debug {
		logger.SetLevel(charmlog.DebugLevel)
	}
	slog.SetDefault(slog.New(logger))

	cfg := config.Load()

	req := &models.ScrapeRequest{
		URL:            c.URL,
		Format:         c.Format,
		ScrapeAllPages: c.All,
		Fields:         c.Fields,
		Stealth:        c.Stealth,
		Timeout:        int(c.Timeout.Seconds()),
	}

	var opener service.Opener
	var sc *scraper.Scraper
	if c.HTMLFile != "" {
		raw, err := os.ReadFile(c.HTMLFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", c.HTMLFile, err)
		}
		req.HTML = string(raw)
	} else {
		var err error
		sc, err = scraper.NewScraper(cfg.Browser, cfg.Scraper)
		if err != nil {
			return err
		}
		defer sc.Close()
		opener = service.BrowserOpener(sc)
	}

	svc := service.New(cfg, opener, service.NewDispatcher(cfg, sc), nil)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	spin := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	spin.Suffix = " scraping " + c.URL
	spin.Start()
	res := svc.Scrape(runCtx, req, func(p models.Progress) {
		spin.Lock()
		spin.Suffix = fmt.Sprintf(" page %d/%d", p.Current, p.Total)
		spin.Unlock()
	})
	spin.Stop()

	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}

	out := c.Output
	if out == "" {
		out = res.Filename
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	logger.Info("export written",
		"file", out,
		"records", res.Count,
		"pages", res.PageCount,
		"failed_pages", len(res.FailedPages),
		"took", time.Duration(res.Timing.TotalMs)*time.Millisecond,
	)
	return nil
}
