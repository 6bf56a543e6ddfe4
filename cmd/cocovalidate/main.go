package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cocovalidate/internal/diag"
	"cocovalidate/internal/fsprobe"
	"cocovalidate/internal/prompt"
	"cocovalidate/internal/report"
	"cocovalidate/internal/settings"
	"cocovalidate/internal/signature"
	"cocovalidate/internal/validate"
	"cocovalidate/internal/watch"
)

var version = "1.0.0"

// errPathMissing is reported as "Path does not exists: <path>".
var errPathMissing = errors.New("path does not exist")

// cli holds the streams, filesystem and flag values of one invocation.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	fs     afero.Fs

	// confirmer overrides the terminal/line prompt choice.
	confirmer prompt.Confirmer

	datasetPath  string
	autoFix      bool
	yes          bool
	verbose      int
	settingsPath string
	reportPath   string

	log *zap.Logger
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	return &cli{in: in, out: out, errOut: errOut, fs: afero.NewOsFs(), log: zap.NewNop()}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cocovalidate",
		Short: "Validate and repair a COCO dataset",
		Long: `Validate a COCO dataset directory: its dataset_infos.json manifest, the
annotation file of every split, the images they reference, duplicates and
leakage between splits. A dataset without errors is signed.

With --auto-fix, repairs are applied (after confirmation unless --yes) and the
dataset is validated again until nothing changes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.log.Sync()
		},
		RunE: c.runValidate,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.datasetPath, "dataset_path", "d", "", "path to the dataset root directory")
	flags.BoolVar(&c.autoFix, "auto-fix", false, "repair what can be repaired (also -af)")
	flags.BoolVarP(&c.yes, "yes", "y", false, "apply repairs without asking")
	flags.CountVarP(&c.verbose, "verbose", "v", "verbose output (-vv for debug logs)")
	flags.StringVar(&c.settingsPath, "settings", "", "settings file (default <dataset>/.cocovalidate/settings.yaml)")
	_ = root.MarkPersistentFlagRequired("dataset_path")
	root.Flags().StringVar(&c.reportPath, "report", "", "write a markdown report to this file")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the dataset (same as running without a subcommand)",
		Args:  cobra.NoArgs,
		RunE:  c.runValidate,
	}
	validateCmd.Flags().StringVar(&c.reportPath, "report", "", "write a markdown report to this file")

	signCmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the dataset signature without validating",
		Args:  cobra.NoArgs,
		RunE:  c.runSign,
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Validate, then validate again whenever the dataset changes",
		Args:  cobra.NoArgs,
		RunE:  c.runWatch,
	}

	root.AddCommand(validateCmd, signCmd, watchCmd)
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	return root
}

// initLogger sends console-encoded logs to errOut: warn by default, info
// with -v, debug with -vv.
func (c *cli) initLogger() error {
	level := zapcore.WarnLevel
	switch {
	case c.verbose >= 2:
		level = zapcore.DebugLevel
	case c.verbose == 1:
		level = zapcore.InfoLevel
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(c.errOut), zap.NewAtomicLevelAt(level))
	c.log = zap.New(core).Named("cocovalidate")
	return nil
}

// ---------------------------------------------------------------------------
// validate
// ---------------------------------------------------------------------------

func (c *cli) runValidate(cmd *cobra.Command, _ []string) error {
	v, _, err := c.validator()
	if err != nil {
		return err
	}
	term := report.NewTerminal(c.out, isTerminal(c.out))
	term.Header(version)
	if c.verbose > 0 {
		term.Println(fmt.Sprintf("Validating dataset with args: dataset_path=%s, auto_fix=%t, yes=%t, verbose=%d",
			c.datasetPath, c.autoFix, c.yes, c.verbose))
	}
	if err := v.ResetLog(); err != nil {
		return err
	}
	_, err = c.validateOnce(cmd.Context(), v, term)
	return err
}

// validateOnce runs the validator to a verdict and prints it. A valid
// dataset is signed.
func (c *cli) validateOnce(ctx context.Context, v *validate.Validator, term *report.Terminal) (*validate.Outcome, error) {
	out, err := v.Validate(ctx)
	if err != nil {
		return nil, err
	}
	term.Messages(out.Diagnostics)
	term.SummaryRule()

	sig := ""
	if out.Valid() {
		term.Println("No critical errors found")
		term.Println("Creating dataset signature ...")
		line, err := v.Mark(out)
		if err != nil {
			return nil, err
		}
		sig = line[len(validate.MarkPrefix):]
		term.Success(line)
	} else {
		term.Failure(validate.FailureLine(out))
	}

	if c.reportPath != "" {
		if err := c.writeReport(v, out, sig); err != nil {
			return nil, err
		}
		c.log.Info("report written", zap.String("path", c.reportPath))
	}
	return out, nil
}

func (c *cli) writeReport(v *validate.Validator, out *validate.Outcome, sig string) error {
	doc := report.Document{
		Summary: report.Summary{
			Dataset:     c.datasetPath,
			RunID:       v.RunID(),
			Runs:        out.Runs,
			Valid:       out.Valid(),
			Errors:      out.Errors(),
			Warnings:    out.Diagnostics.Count(diag.SeverityWarning),
			Notes:       out.Diagnostics.Count(diag.SeverityNote),
			Signature:   sig,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		},
		Diagnostics: out.Diagnostics,
	}
	for _, st := range out.Stats {
		doc.Splits = append(doc.Splits, report.SplitStat{
			Name:           st.Name,
			AnnotationFile: st.AnnotationFile,
			Images:         st.Images,
			Bytes:          st.Bytes,
		})
	}
	if err := c.fs.MkdirAll(filepath.Dir(c.reportPath), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	return report.WriteMarkdown(fsprobe.New(c.fs), c.reportPath, doc)
}

// ---------------------------------------------------------------------------
// sign
// ---------------------------------------------------------------------------

func (c *cli) runSign(cmd *cobra.Command, _ []string) error {
	v, _, err := c.validator()
	if err != nil {
		return err
	}
	sig, err := v.Sign()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, sig)
	return nil
}

// ---------------------------------------------------------------------------
// watch
// ---------------------------------------------------------------------------

func (c *cli) runWatch(cmd *cobra.Command, _ []string) error {
	v, s, err := c.validator()
	if err != nil {
		return err
	}
	term := report.NewTerminal(c.out, isTerminal(c.out))
	opts := watch.Options{Ignore: s.ExcludeFromSignature, Logger: c.log}
	return watch.Run(cmd.Context(), c.datasetPath, opts, func(ctx context.Context) error {
		if err := v.ResetLog(); err != nil {
			return err
		}
		out, err := c.validateOnce(ctx, v, term)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err == nil {
			c.log.Info("validation finished", zap.Stringer("state", out.State), zap.Int("runs", out.Runs))
		}
		return err
	})
}

// ---------------------------------------------------------------------------
// wiring
// ---------------------------------------------------------------------------

// validator builds a Validator for the dataset flag, loading settings and
// picking the prompt and progress output for the current streams.
func (c *cli) validator() (*validate.Validator, *settings.Settings, error) {
	if _, err := c.fs.Stat(c.datasetPath); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", errPathMissing, c.datasetPath)
	}
	path := c.settingsPath
	if path == "" {
		path = settings.DefaultPath(c.datasetPath)
	}
	s, err := settings.Load(c.fs, path)
	if err != nil {
		return nil, nil, err
	}

	signer := signature.TreeSigner{Exclude: s.ExcludeFromSignature}
	if c.verbose > 0 && isTerminal(c.errOut) {
		signer.Progress = c.errOut
	}

	v, err := validate.New(validate.Options{
		Root:          c.datasetPath,
		WorkDir:       c.datasetPath,
		AutoFix:       c.autoFix,
		AutoFixPrompt: !c.yes,
		Settings:      s,
		Confirmer:     c.prompter(),
		Signer:        signer,
		Logger:        c.log,
		Fs:            c.fs,
	})
	if err != nil {
		return nil, nil, err
	}
	return v, s, nil
}

func (c *cli) prompter() prompt.Confirmer {
	if c.confirmer != nil {
		return c.confirmer
	}
	in, inOK := c.in.(*os.File)
	out, outOK := c.out.(*os.File)
	if inOK && outOK {
		return prompt.New(in, out)
	}
	return prompt.NewLine(c.in, c.out)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// rewriteArgs maps the two-letter -af flag onto --auto-fix; pflag would
// read it as -a -f.
func rewriteArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == "-af" {
			a = "--auto-fix"
		}
		out[i] = a
	}
	return out
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, c *cli, args []string) int {
	root := c.rootCmd()
	root.SetArgs(rewriteArgs(args))
	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errPathMissing):
		fmt.Fprintf(c.out, "Path does not exists: %s\n", c.datasetPath)
	default:
		fmt.Fprintf(c.errOut, "cocovalidate: %v\n", err)
	}
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, newCLI(os.Stdin, os.Stdout, os.Stderr), os.Args[1:])
	stop()
	os.Exit(code)
}
