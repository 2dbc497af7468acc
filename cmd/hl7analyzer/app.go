package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/oarkflow/hl7analyzer/etl"
	"github.com/oarkflow/hl7analyzer/pkg/adapters/fileadapter"
	"github.com/oarkflow/hl7analyzer/pkg/adapters/hl7adapter"
	"github.com/oarkflow/hl7analyzer/pkg/adapters/ioadapter"
	"github.com/oarkflow/hl7analyzer/pkg/config"
	"github.com/oarkflow/hl7analyzer/pkg/contracts"
	"github.com/oarkflow/hl7analyzer/pkg/parsers"
	"github.com/oarkflow/hl7analyzer/pkg/transformers"
	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "source",
			Aliases: []string{"s"},
			Value:   "WISH",
			Usage:   "Source system whose rules apply (WISH or ORLine)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a .csv or .json file instead of stdout",
		},
		&cli.StringFlag{
			Name:  "format",
			Value: "csv",
			Usage: "Stdout format (csv or json)",
		},
		&cli.BoolFlag{
			Name:  "append",
			Usage: "Append to the output file instead of replacing it",
		},
		&cli.BoolFlag{
			Name:  "split",
			Usage: "Split files holding several messages at each MSH segment",
		},
		&cli.StringSliceFlag{
			Name:  "ext",
			Usage: "File extensions picked up in directories",
			Value: cli.NewStringSlice(hl7adapter.DefaultExtensions...),
		},
		&cli.IntFlag{
			Name:  "workers",
			Value: 1,
			Usage: "Number of messages parsed concurrently",
		},
		&cli.IntFlag{
			Name:  "cache",
			Usage: "Cache parsed messages, up to this many entries",
		},
		&cli.StringFlag{
			Name:  "filter",
			Usage: `Keep records matching an expression, e.g. 'sexe == "F"'`,
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log every message",
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "hl7analyzer",
		Usage: "Inspect ORLine and WISH HL7 messages",
		Commands: []*cli.Command{
			{
				Name:      "table",
				Usage:     "Print every segment line as positional fields",
				ArgsUsage: "FILES...",
				Flags:     inputFlags(),
				Action:    tableAction,
			},
			{
				Name:      "details",
				Usage:     "Print the record extracted from each message",
				ArgsUsage: "FILES...",
				Flags:     inputFlags(),
				Action:    detailsAction,
			},
			{
				Name:      "patients",
				Usage:     "List the distinct patient identifiers",
				ArgsUsage: "FILES...",
				Flags:     inputFlags(),
				Action:    patientsAction,
			},
			{
				Name:      "patient",
				Usage:     "Print the records of one patient",
				ArgsUsage: "FILES...",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Patient identifier (ID PAT)",
						Required: true,
					},
				}, inputFlags()...),
				Action: patientAction,
			},
			{
				Name:      "run",
				Usage:     "Run an analysis described by a configuration file",
				ArgsUsage: "[FILES...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the configuration file (BCL, YAML, or JSON)",
						Required: true,
					},
				},
				Action: runAction,
			},
		},
	}
}

// configFromFlags maps command flags onto a Config.
func configFromFlags(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{
		Source:      c.String("source"),
		Inputs:      c.Args().Slice(),
		Extensions:  c.StringSlice("ext"),
		Split:       c.Bool("split"),
		WorkerCount: c.Int("workers"),
		CacheSize:   c.Int("cache"),
		Verbose:     c.Bool("verbose"),
	}
	if cond := c.String("filter"); cond != "" {
		cfg.Transformers = append(cfg.Transformers, config.TransformerConfig{
			Type:    "filter",
			Options: map[string]any{"condition": cond},
		})
	}
	if len(cfg.Inputs) == 0 {
		return nil, errors.New("no input files given")
	}
	if cfg.WorkerCount <= 0 {
		return nil, fmt.Errorf("--workers must be positive, got %d", cfg.WorkerCount)
	}
	return cfg, cfg.Validate()
}

// analyze runs the pipeline described by cfg. A single "-" input reads one
// stream from in.
func analyze(ctx context.Context, cfg *config.Config, in io.Reader, w io.Writer) (*etl.BatchResult, error) {
	if _, ok := parsers.ParseVariant(cfg.Source); !ok {
		fmt.Fprintf(w, "warning: unknown source %q, records will only carry file and source columns\n", cfg.Source)
	}
	ts, err := transformers.BuildTransformers(cfg.Transformers)
	if err != nil {
		return nil, err
	}
	opts := []etl.Option{
		etl.WithVerbose(cfg.Verbose),
		etl.WithTransformers(ts...),
	}
	if cfg.WorkerCount > 0 {
		opts = append(opts, etl.WithWorkerCount(cfg.WorkerCount))
	}
	if cfg.CacheSize > 0 {
		opts = append(opts, etl.WithCache(cfg.CacheSize))
	}
	pipeline, err := etl.New(cfg.Source, opts...)
	if err != nil {
		return nil, err
	}
	defer pipeline.Close()
	var src contracts.Source
	if len(cfg.Inputs) == 1 && cfg.Inputs[0] == "-" {
		src = ioadapter.NewSource(io.NopCloser(in), "", cfg.Split)
	} else {
		src = hl7adapter.NewFileSource(cfg.Inputs, hl7adapter.WithMessageSplit(cfg.Split))
	}
	var srcOpts []contracts.Option
	if len(cfg.Extensions) > 0 {
		srcOpts = append(srcOpts, contracts.WithExtensions(cfg.Extensions...))
	}
	batch, err := pipeline.RunSource(ctx, src, srcOpts...)
	if err != nil {
		return nil, err
	}
	for _, item := range batch.Failures() {
		fmt.Fprintf(w, "%s: %s: %v\n", item.Status, item.File, item.Err)
	}
	return batch, nil
}

func runWithFlags(c *cli.Context) (*etl.BatchResult, error) {
	cfg, err := configFromFlags(c)
	if err != nil {
		return nil, err
	}
	return analyze(c.Context, cfg, c.App.Reader, c.App.ErrWriter)
}

// emit writes records to the --output file or to stdout.
func emit(c *cli.Context, columns []string, records []utils.Record) error {
	if path := c.String("output"); path != "" {
		if _, err := config.OutputFormat(path); err != nil {
			return err
		}
		return fileadapter.Store(c.Context, path, c.Bool("append"), columns, records)
	}
	return writeRecords(c.Context, c.App.Writer, c.String("format"), columns, records)
}

func writeRecords(ctx context.Context, w io.Writer, format string, columns []string, records []utils.Record) error {
	loader := ioadapter.NewLoader(w, format, columns...)
	if err := loader.Setup(ctx); err != nil {
		return err
	}
	if err := loader.StoreBatch(ctx, records); err != nil {
		return err
	}
	return loader.Close()
}

func tableAction(c *cli.Context) error {
	batch, err := runWithFlags(c)
	if err != nil {
		return err
	}
	if batch.Table.Len() == 0 {
		return fmt.Errorf("no segment lines: %w", parsers.ErrEmptyInput)
	}
	return emit(c, batch.Table.Columns, batch.Table.Records())
}

func detailsAction(c *cli.Context) error {
	batch, err := runWithFlags(c)
	if err != nil {
		return err
	}
	return emit(c, batch.Columns(), batch.Records)
}

func patientsAction(c *cli.Context) error {
	batch, err := runWithFlags(c)
	if err != nil {
		return err
	}
	records, err := batch.PatientRecords()
	if errors.Is(err, etl.ErrNoPatientIDs) {
		fmt.Fprintln(c.App.ErrWriter, "warning: no patient identifiers found")
		return nil
	}
	if err != nil {
		return err
	}
	return emit(c, []string{parsers.AttrPatientID}, records)
}

func patientAction(c *cli.Context) error {
	batch, err := runWithFlags(c)
	if err != nil {
		return err
	}
	id := c.String("id")
	records := batch.RecordsForPatient(id)
	if len(records) == 0 {
		return fmt.Errorf("no records for patient %q", id)
	}
	return emit(c, batch.Columns(), records)
}

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("file"))
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if c.Args().Len() > 0 {
		cfg.Inputs = c.Args().Slice()
	}
	if len(cfg.Inputs) == 0 {
		return errors.New("config has no inputs and none were given")
	}
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	etl.Shutdown(cancel)
	batch, err := analyze(ctx, cfg, c.App.Reader, c.App.ErrWriter)
	if err != nil {
		return err
	}
	if len(cfg.Outputs.Paths()) == 0 {
		return writeRecords(ctx, c.App.Writer, "csv", batch.Columns(), batch.Records)
	}
	if err := etl.Export(ctx, batch, cfg.Outputs); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "batch %s: %d ok, %d skipped, %d failed\n", batch.ID,
		batch.Count(etl.StatusOK), batch.Count(etl.StatusSkipped), batch.Count(etl.StatusFailed))
	return nil
}
