package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli/v2"
	str2duration "github.com/xhit/go-str2duration/v2"

	"borsapulse/internal/app"
	"borsapulse/internal/config"
	"borsapulse/internal/exporter"
	"borsapulse/internal/files"
	"borsapulse/internal/infrastructure"
	"borsapulse/internal/services"
	"borsapulse/internal/validation"
	"borsapulse/pkg/contracts"
	"borsapulse/pkg/contracts/domain"
)

const closeTimeout = 30 * time.Second

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "borsactl",
		Usage:     "manage instruments, price files and analysis",
		Version:   contracts.GetVersionInfo().Version,
		Writer:    stdout,
		ErrWriter: stderr,

		// main maps ExitCoder errors to the process status
		ExitErrHandler: func(*cli.Context, error) {},

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML configuration file",
				EnvVars: []string{config.EnvPrefix + "_CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("config"); path != "" {
				return os.Setenv(config.EnvPrefix+"_CONFIG_FILE", path)
			}
			return nil
		},
		Commands: []*cli.Command{
			instrumentCommand(),
			ingestCommand(),
			ingestDirCommand(),
			analyzeCommand(),
			exportCommand(),
			{
				Name:  "version",
				Usage: "print build information",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintln(c.App.Writer, contracts.GetVersionInfo().String())
					return err
				},
			},
		},
	}
}

// withContainer loads the configuration, builds the service container and
// closes it once fn returns. Logs go to the app's error writer so stdout
// carries only command output.
func withContainer(c *cli.Context, fn func(ctx context.Context, ct *app.Container) error) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	level := cfg.Logging.Level
	if override := c.String("log-level"); override != "" {
		level = override
	}
	logger := infrastructure.WithComponent(infrastructure.NewLogger(c.App.ErrWriter, level, false), "borsactl")

	ctx := infrastructure.EnsureTraceID(c.Context)
	ct, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := ct.Close(closeCtx); cerr != nil {
			logger.Error("failed to close container", slog.String("error", cerr.Error()))
			err = errors.Join(err, cerr)
		}
	}()

	return fn(ctx, ct)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func instrumentCommand() *cli.Command {
	return &cli.Command{
		Name:  "instrument",
		Usage: "manage the instrument catalogue",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "register a new instrument",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Required: true},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true},
					&cli.StringFlag{Name: "sector"},
					&cli.StringFlag{Name: "description"},
				},
				Action: func(c *cli.Context) error {
					return withContainer(c, func(ctx context.Context, ct *app.Container) error {
						inst, err := ct.Instruments.Create(ctx, services.CreateInstrumentRequest{
							Symbol:      c.String("symbol"),
							Name:        c.String("name"),
							Sector:      c.String("sector"),
							Description: c.String("description"),
						})
						if err != nil {
							return err
						}
						return printJSON(c.App.Writer, inst)
					})
				},
			},
			{
				Name:  "list",
				Usage: "list registered instruments",
				Action: func(c *cli.Context) error {
					return withContainer(c, func(ctx context.Context, ct *app.Container) error {
						list, err := ct.Instruments.List(ctx)
						if err != nil {
							return err
						}
						return printJSON(c.App.Writer, list)
					})
				},
			},
			{
				Name:  "update",
				Usage: "edit the name, sector or description of an instrument",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Required: true},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}},
					&cli.StringFlag{Name: "sector"},
					&cli.StringFlag{Name: "description"},
				},
				Action: func(c *cli.Context) error {
					var req services.UpdateInstrumentRequest
					if c.IsSet("name") {
						name := c.String("name")
						req.Name = &name
					}
					if c.IsSet("sector") {
						sector := c.String("sector")
						req.Sector = &sector
					}
					if c.IsSet("description") {
						description := c.String("description")
						req.Description = &description
					}
					if req.Name == nil && req.Sector == nil && req.Description == nil {
						return cli.Exit("nothing to update: pass --name, --sector or --description", 2)
					}
					return withContainer(c, func(ctx context.Context, ct *app.Container) error {
						inst, err := ct.Instruments.Update(ctx, c.String("symbol"), req)
						if err != nil {
							return err
						}
						return printJSON(c.App.Writer, inst)
					})
				},
			},
			setActiveCommand("activate", "include an instrument in scheduled recomputes", true),
			setActiveCommand("deactivate", "exclude an instrument from scheduled recomputes", false),
			{
				Name:  "delete",
				Usage: "remove an instrument with its prices and analysis",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Required: true},
				},
				Action: func(c *cli.Context) error {
					return withContainer(c, func(ctx context.Context, ct *app.Container) error {
						return ct.Instruments.Delete(ctx, c.String("symbol"))
					})
				},
			},
		},
	}
}

func setActiveCommand(name, usage string, active bool) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			return withContainer(c, func(ctx context.Context, ct *app.Container) error {
				inst, err := ct.Instruments.SetActive(ctx, c.String("symbol"), active)
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, inst)
			})
		},
	}
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "load a CSV or Excel price file for an instrument",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Required: true},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, TakesFile: true},
			&cli.StringFlag{Name: "header", Usage: "header mode: auto, positional or required"},
			&cli.StringFlag{Name: "date-layout", Usage: "Go time layout of the date column"},
			&cli.StringFlag{Name: "note"},
			&cli.StringFlag{Name: "batch", Usage: "re-run an existing batch id"},
			&cli.BoolFlag{Name: "reprocess", Usage: "allow re-running a processed batch"},
			&cli.BoolFlag{Name: "recompute", Usage: "recompute analysis after a successful ingest"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("file")
			size, err := validation.LocalFile(path)
			if err != nil {
				return err
			}

			return withContainer(c, func(ctx context.Context, ct *app.Container) error {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}
				defer f.Close()

				noRecompute := false
				res, err := ct.Ingestion.IngestFile(ctx, services.IngestFileRequest{
					Symbol:     c.String("symbol"),
					Filename:   path,
					Reader:     f,
					Size:       size,
					Note:       c.String("note"),
					UploadedBy: "borsactl",
					HeaderMode: c.String("header"),
					DateLayout: c.String("date-layout"),
					BatchID:    c.String("batch"),
					Reprocess:  c.Bool("reprocess"),
					Recompute:  &noRecompute,
				})
				if err != nil {
					return err
				}

				out := struct {
					*services.IngestFileResult
					Analysis any `json:"analysis,omitempty"`
				}{IngestFileResult: res}

				if c.Bool("recompute") && res.Summary != nil && res.Summary.SuccessCount > 0 {
					result, err := ct.Analysis.Recompute(ctx, c.String("symbol"))
					if err != nil {
						return err
					}
					out.Analysis = result
				}
				return printJSON(c.App.Writer, out)
			})
		},
	}
}

type dirFileResult struct {
	File    string                   `json:"file"`
	Symbol  string                   `json:"symbol"`
	BatchID string                   `json:"batch_id,omitempty"`
	Summary *domain.IngestionSummary `json:"summary,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

func ingestDirCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest-dir",
		Usage: "ingest every price file in a directory, one instrument per file name",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Required: true, TakesFile: true},
			&cli.StringFlag{Name: "since", Usage: "only files modified within this duration, e.g. 36h or 7d"},
			&cli.BoolFlag{Name: "create", Usage: "register unknown symbols using the symbol as name"},
			&cli.StringFlag{Name: "header", Usage: "header mode: auto, positional or required"},
			&cli.StringFlag{Name: "date-layout", Usage: "Go time layout of the date column"},
			&cli.BoolFlag{Name: "recompute", Usage: "recompute analysis for each ingested instrument"},
		},
		Action: func(c *cli.Context) error {
			var since time.Duration
			if raw := c.String("since"); raw != "" {
				d, err := str2duration.ParseDuration(raw)
				if err != nil || d <= 0 {
					return cli.Exit(fmt.Sprintf("invalid --since %q", raw), 2)
				}
				since = d
			}

			found, err := files.NewDiscovery("").FindPriceFiles(c.String("dir"))
			if err != nil {
				return err
			}
			priceFiles := found.Files
			if since > 0 {
				priceFiles = files.ModifiedSince(priceFiles, time.Now().Add(-since))
			}

			return withContainer(c, func(ctx context.Context, ct *app.Container) error {
				out := struct {
					Files    []dirFileResult `json:"files"`
					Skipped  []files.Skipped `json:"skipped,omitempty"`
					Analysis map[string]any  `json:"analysis,omitempty"`
				}{Skipped: found.Skipped}

				var failed int
				groups := files.GroupBySymbol(priceFiles)
				symbols := make([]string, 0, len(groups))
				for symbol := range groups {
					symbols = append(symbols, symbol)
				}
				sort.Strings(symbols)

				if c.Bool("recompute") {
					out.Analysis = map[string]any{}
				}
				for _, symbol := range symbols {
					group := groups[symbol]
					if c.Bool("create") {
						if err := ensureInstrument(ctx, ct, symbol); err != nil {
							for _, f := range group {
								out.Files = append(out.Files, dirFileResult{File: f.Name, Symbol: symbol, Error: err.Error()})
							}
							failed += len(group)
							continue
						}
					}

					var ingested bool
					for _, f := range group {
						res := ingestOne(ctx, c, ct, f)
						if res.Error != "" {
							failed++
						} else if res.Summary != nil && res.Summary.SuccessCount > 0 {
							ingested = true
						}
						out.Files = append(out.Files, res)
					}

					if ingested && c.Bool("recompute") {
						result, err := ct.Analysis.Recompute(ctx, symbol)
						if err != nil {
							out.Analysis[symbol] = err.Error()
							failed++
							continue
						}
						out.Analysis[symbol] = result
					}
				}

				if err := printJSON(c.App.Writer, out); err != nil {
					return err
				}
				if failed > 0 {
					return cli.Exit(fmt.Sprintf("%d file(s) failed", failed), 1)
				}
				return nil
			})
		},
	}
}

// ensureInstrument registers symbol under its own name unless it exists
func ensureInstrument(ctx context.Context, ct *app.Container, symbol string) error {
	_, err := ct.Instruments.Get(ctx, symbol)
	if errors.Is(err, services.ErrInstrumentNotFound) {
		_, err = ct.Instruments.Create(ctx, services.CreateInstrumentRequest{Symbol: symbol, Name: symbol})
	}
	return err
}

func ingestOne(ctx context.Context, c *cli.Context, ct *app.Container, f files.PriceFile) dirFileResult {
	res := dirFileResult{File: f.Name, Symbol: f.Symbol}

	fh, err := os.Open(f.Path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer fh.Close()

	noRecompute := false
	result, err := ct.Ingestion.IngestFile(ctx, services.IngestFileRequest{
		Symbol:     f.Symbol,
		Filename:   f.Name,
		Reader:     fh,
		Size:       f.Size,
		UploadedBy: "borsactl",
		HeaderMode: c.String("header"),
		DateLayout: c.String("date-layout"),
		Recompute:  &noRecompute,
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if result.Batch != nil {
		res.BatchID = result.Batch.ID
	}
	res.Summary = result.Summary
	return res
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "recompute analysis for one instrument or all of them",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}},
			&cli.BoolFlag{Name: "all", Usage: "recompute every active instrument"},
		},
		Action: func(c *cli.Context) error {
			symbol, all := c.String("symbol"), c.Bool("all")
			if (symbol == "") == !all {
				return cli.Exit("exactly one of --symbol or --all is required", 2)
			}

			return withContainer(c, func(ctx context.Context, ct *app.Container) error {
				if all {
					res, err := ct.Analysis.RecomputeAll(ctx)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, res)
				}
				res, err := ct.Analysis.Recompute(ctx, symbol)
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, res)
			})
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write analysis records to a CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Required: true},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, TakesFile: true},
			&cli.StringFlag{Name: "from", Usage: "first date, YYYY-MM-DD"},
			&cli.StringFlag{Name: "to", Usage: "last date, YYYY-MM-DD"},
		},
		Action: func(c *cli.Context) error {
			q, err := dateRange(c.String("from"), c.String("to"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			return withContainer(c, func(ctx context.Context, ct *app.Container) error {
				symbol := services.NormalizeSymbol(c.String("symbol"))
				records, err := ct.Analysis.ListAnalysis(ctx, symbol, q)
				if err != nil {
					return err
				}

				stream, err := exporter.CreateFileStream(c.String("out"), exporter.AnalysisHeaders)
				if err != nil {
					return err
				}
				for _, r := range records {
					if err := stream.WriteRecord(exporter.AnalysisRow(symbol, r)); err != nil {
						stream.Close()
						return err
					}
				}
				if err := stream.Close(); err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.App.Writer, "wrote %d rows to %s\n", stream.Rows(), c.String("out"))
				return err
			})
		},
	}
}

func dateRange(from, to string) (domain.AnalysisQuery, error) {
	var q domain.AnalysisQuery
	if from != "" {
		t, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return q, fmt.Errorf("invalid --from date %q", from)
		}
		q.From = t
	}
	if to != "" {
		t, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return q, fmt.Errorf("invalid --to date %q", to)
		}
		q.To = t
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return q, errors.New("--to is before --from")
	}
	return q, nil
}
