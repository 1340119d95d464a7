package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/evolve/internal/mcptools"
	"github.com/cognicore/evolve/internal/source"
	"github.com/cognicore/evolve/pkg/evolve"
	"github.com/cognicore/evolve/pkg/evolve/config"
	"github.com/cognicore/evolve/pkg/evolve/taxonomy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, newCLI(os.Stdout), os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// execute runs one command line and flushes the logger whether or not the
// command failed.
func execute(ctx context.Context, c *cli, args []string) error {
	root := c.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		c.logger.Error("command failed", zap.Error(err))
	}
	_ = c.logger.Sync()
	return err
}

// cli holds global flags and the logger shared by every subcommand
type cli struct {
	configPath string
	storePath  string
	driver     string
	verbose    bool

	logger    *zap.Logger
	newLogger func(verbose bool) (*zap.Logger, error)
	out       io.Writer
}

func newCLI(out io.Writer) *cli {
	return &cli{out: out, logger: zap.NewNop(), newLogger: productionLogger}
}

func newRootCmd(out io.Writer) *cobra.Command {
	return newCLI(out).rootCmd()
}

func productionLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func (c *cli) rootCmd() *cobra.Command {

	root := &cobra.Command{
		Use:   "evolve",
		Short: "Taxonomy evolution engine",
		Long: `evolve maintains a taxonomy of techniques.

New descriptions are scored against every existing code. Close matches add
evidence to that code; anything else becomes a new candidate. Candidates
corroborated by enough distinct sources are promoted to confirmed, and codes
left unseen for too long are deprecated.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize logger
			logger, err := c.newLogger(c.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.logger = logger
			return nil
		},
	}
	root.SetOut(c.out)

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&c.storePath, "store", "", "taxonomy store path (overrides config)")
	root.PersistentFlags().StringVar(&c.driver, "driver", "", "store driver: json or sqlite (overrides config)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		c.proposeCmd(),
		c.evidenceCmd(),
		c.promoteCmd(),
		c.deprecateCmd(),
		c.patternsCmd(),
		c.exportCmd(),
		c.serveCmd(),
	)
	return root
}

// engine loads the configuration and opens the store for one command.
func (c *cli) engine(ctx context.Context) (*evolve.Engine, error) {
	loader := config.Loader{
		ConfigPath:  c.configPath,
		StorePath:   c.storePath,
		StoreDriver: c.driver,
	}
	comp, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("store opened",
		zap.String("driver", comp.Config.Store.Driver),
		zap.String("path", comp.Config.Store.Path),
		zap.Int("stopwords", comp.Stoplist.Len()))
	return evolve.New(comp.Options(c.logger)), nil
}

func (c *cli) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, string(data))
	return err
}

func (c *cli) proposeCmd() *cobra.Command {
	var (
		src       string
		evidence  string
		threshold float64
		file      string
	)
	cmd := &cobra.Command{
		Use:   "propose [description]",
		Short: "Propose a technique description",
		Long: `Scores the description against every code. At or above the threshold the
best match gains an evidence record; below it a new candidate is created and
the best sub-threshold match is reported for review.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var description string
			switch {
			case len(args) == 1 && file != "":
				return fmt.Errorf("give either a description argument or --file, not both")
			case len(args) == 1:
				description = args[0]
			case file != "":
				text, err := source.ReadDescription(file)
				if err != nil {
					return err
				}
				description = text
			default:
				return fmt.Errorf("a description argument or --file is required")
			}

			eng, err := c.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			req := evolve.ProposeRequest{
				Description: description,
				Source:      src,
				Evidence:    evidence,
			}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}
			res, err := eng.Propose(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&src, "source", "", "source reference (required)")
	cmd.Flags().StringVar(&evidence, "evidence", "", "evidence text to record instead of the description")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "similarity threshold; 0 accepts any overlap (default from config, 0.35)")
	cmd.Flags().StringVar(&file, "file", "", "read the description from a file (.html is reduced to text, - for stdin)")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func (c *cli) evidenceCmd() *cobra.Command {
	var src, desc string
	cmd := &cobra.Command{
		Use:   "evidence CODE",
		Short: "Add evidence to an existing code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := c.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.AccumulateEvidence(cmd.Context(), args[0], src, desc)
			if err != nil {
				if res, err = evolve.ErrorResult(args[0], err); err != nil {
					return err
				}
			}
			return c.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&src, "source", "", "source reference (required)")
	cmd.Flags().StringVar(&desc, "desc", "", "evidence description (required)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("desc")
	return cmd
}

func (c *cli) promoteCmd() *cobra.Command {
	var minSources int
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote candidates backed by enough distinct sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := c.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			if !cmd.Flags().Changed("min-sources") {
				minSources = eng.Defaults().MinSources
			}
			promoted, err := eng.PromoteCandidates(cmd.Context(), minSources)
			if err != nil {
				return err
			}
			if len(promoted) == 0 {
				_, err = fmt.Fprintln(c.out, mcptools.NoPromotions)
				return err
			}
			return c.printJSON(promoted)
		},
	}
	cmd.Flags().IntVar(&minSources, "min-sources", 0, "minimum distinct sources (default from config, 3)")
	return cmd
}

func (c *cli) deprecateCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "deprecate",
		Short: "Deprecate codes not seen for a number of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := c.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			if !cmd.Flags().Changed("days") {
				days = eng.Defaults().DaysUnseen
			}
			flagged, err := eng.DeprecationCheck(cmd.Context(), days)
			if err != nil {
				return err
			}
			if len(flagged) == 0 {
				_, err = fmt.Fprintln(c.out, mcptools.NoDeprecations)
				return err
			}
			return c.printJSON(flagged)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "days unseen before deprecation (default from config, 180)")
	return cmd
}

func (c *cli) patternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns CODE",
		Short: "Print scanner regex patterns for a code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := c.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			pats, err := eng.GeneratePatterns(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printJSON(pats)
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the full taxonomy document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := c.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			doc, err := eng.Export(cmd.Context())
			if err != nil {
				return err
			}
			data, err := taxonomy.Encode(doc)
			if err != nil {
				return err
			}
			_, err = c.out.Write(data)
			return err
		},
	}
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the taxonomy tools over MCP stdio",
		Long: `Runs an MCP server on stdin/stdout exposing taxonomy_propose,
taxonomy_evidence, taxonomy_promote, taxonomy_deprecate, taxonomy_patterns and
taxonomy_export. Run a single server per taxonomy document.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := c.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			c.logger.Info("serving MCP on stdio")
			return server.ServeStdio(mcptools.NewServer(eng))
		},
	}
}
