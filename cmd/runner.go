package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotlike/internal/auth"
	"github.com/desertthunder/spotlike/internal/models"
	"github.com/desertthunder/spotlike/internal/shared"
	"github.com/desertthunder/spotlike/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

// errOutput marks a failure to write the result itself, so no second result is attempted.
var errOutput = errors.New("failed to write result")

// MsgUsageShown is the result of --help, whose text goes to stderr.
const MsgUsageShown = "usage printed to stderr"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies not supplied through [RunnerOpts] are built in [Runner.Before] once the global flags are parsed.
type Runner struct {
	config     *shared.Config
	store      auth.Store
	manager    *auth.Manager
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	hints      *ui.Palette
	opener     func(string) error
	prompt     func() (string, error)
	now        func() time.Time

	configured bool
	ownLogger  bool
	logCloser  io.Closer
	written    bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config // skips --config and env handling when set
	Store      auth.Store
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer              // JSON results; defaults to stdout
	Hints      io.Writer              // human hints; defaults to stderr
	Opener     func(url string) error // defaults to [shared.OpenBrowser]
	Prompt     func() (string, error) // asks for a client id; defaults to a survey prompt on a terminal
	Now        func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Opener == nil {
		opts.Opener = shared.OpenBrowser
	}
	if opts.Prompt == nil {
		opts.Prompt = promptClientID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Runner{
		config:     opts.Config,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		hints:      ui.NewPalette(opts.Hints),
		opener:     opts.Opener,
		prompt:     opts.Prompt,
		now:        opts.Now,
		configured: opts.Config != nil,
		ownLogger:  opts.Logger == nil,
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	return r
}

// App builds the root command.
func (r *Runner) App() *cli.Command {
	return &cli.Command{
		Name:      "spotlike",
		Usage:     "Spotify login and liked-songs helper that prints one JSON result per call",
		Version:   version,
		Writer:    r.hints.Writer(),
		ErrWriter: r.hints.Writer(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (default: $XDG_CONFIG_HOME/ags/private/spotlike.toml)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load SPOTLIKE_* variables from a dotenv file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Before:   r.Before,
		Action:   r.action(r.Unsupported),
		Commands: r.register(),
	}
}

// Run executes the CLI and guarantees one JSON result on the output, including for setup errors and panics.
func (r *Runner) Run(ctx context.Context, args []string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic", "panic", p)
			if r.written {
				err = fmt.Errorf("%w: panic after result: %v", errOutput, p)
				return
			}
			err = r.writeResult(models.Failure(fmt.Sprintf("unexpected error: %v", p)))
		}
	}()

	r.written = false
	app := r.App()
	if err := app.Run(ctx, args); err != nil {
		if errors.Is(err, errOutput) {
			return err
		}
		r.logger.Error("command failed", "error", err)
		return r.writeResult(models.Failure(shared.Message(err)))
	}

	// help and version exit without running an action
	if !r.written {
		res := models.Result{OK: true, Message: MsgUsageShown}
		if app.Bool("version") {
			res.Message = "spotlike version " + version
		}
		return r.writeResult(res)
	}
	return nil
}

// Before loads the env file and configuration, then wires the logger, store, and token manager.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if !r.configured {
		if err := shared.LoadEnvFile(cmd.String("env-file")); err != nil {
			return ctx, err
		}

		cfg, err := loadConfig(cmd.String("config"))
		if err != nil {
			return ctx, err
		}
		if err := cfg.ApplyEnv(); err != nil {
			return ctx, err
		}
		r.config = cfg
		r.configured = true
	}

	if level := cmd.String("log-level"); level != "" {
		r.config.Log.Level = level
	}
	if err := r.config.Validate(); err != nil {
		return ctx, err
	}

	if r.ownLogger {
		w := shared.LogWriter(r.config.Log)
		if c, ok := w.(io.Closer); ok && w != io.Writer(os.Stderr) {
			r.logCloser = c
		}
		r.logger = shared.NewLogger(w)
	}
	shared.SetLogLevel(r.logger, r.config.Log.Level)

	if r.httpClient == nil {
		r.httpClient = &http.Client{Timeout: r.config.HTTPTimeout()}
	}
	if r.store == nil {
		r.store = auth.NewFileStore(r.config.AuthFile(), r.logger)
	}

	r.manager = auth.NewManager(auth.ManagerOptions{
		Store:      r.store,
		Config:     r.config,
		Logger:     r.logger,
		HTTPClient: r.httpClient,
		Opener:     r.openBrowser,
		Now:        r.now,
	})

	r.logger.Debug("runner ready", "auth_file", r.store.Path())
	return ctx, nil
}

// Close releases the rotating log file, if any.
func (r *Runner) Close() error {
	if r.logCloser != nil {
		return r.logCloser.Close()
	}
	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		loginCommand, likeStatusCommand, toggleLikeCommand, statusCommand, logoutCommand, configureCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// resultFunc is a command body producing the single result object.
type resultFunc func(ctx context.Context, cmd *cli.Command) (models.Result, error)

// action adapts fn to urfave's action signature and writes its result.
//
// Errors become ok=false results with authorized=false; fields fn already filled (authFile, liked) are kept.
func (r *Runner) action(fn resultFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		res, err := fn(ctx, cmd)
		if err != nil {
			r.logger.Error("command failed", "command", cmd.Name, "error", err)
			res.OK = false
			res.Authorized = false
			res.Message = shared.Message(err)
		}
		return r.writeResult(res)
	}
}

// Unsupported handles a bare or unknown command.
func (r *Runner) Unsupported(ctx context.Context, cmd *cli.Command) (models.Result, error) {
	if cmd.Args().Len() == 0 {
		return models.Result{}, fmt.Errorf("%w: command", shared.ErrMissingArgument)
	}
	return models.Result{}, fmt.Errorf("%w: unsupported command %q", shared.ErrValidation, cmd.Args().First())
}

// openBrowser prints a hint, then opens url. On failure the URL is printed so the user can continue by hand.
func (r *Runner) openBrowser(url string) error {
	r.hints.Hint(r.hints.Title, "Opening Spotify authorization in your browser")
	if err := r.opener(url); err != nil {
		r.hints.Hint(r.hints.Warn, "Could not open a browser. Visit this URL to continue:")
		r.hints.Hint(r.hints.Help, "%s", url)
		return err
	}
	return nil
}

func (r *Runner) writeResult(res models.Result) error {
	r.written = true
	if err := r.writeJSON(res, false); err != nil {
		return fmt.Errorf("%w: %v", errOutput, err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

// loadConfig reads path, or the default location when path is empty. A missing default file means defaults.
func loadConfig(path string) (*shared.Config, error) {
	if strings.TrimSpace(path) != "" {
		return shared.LoadConfig(path)
	}

	path = shared.DefaultConfigPath()
	if _, err := os.Stat(path); err != nil {
		return shared.DefaultConfig(), nil
	}
	return shared.LoadConfig(path)
}

// promptClientID asks for the client id on stderr when stdin is a terminal.
func promptClientID() (string, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("%w: --client-id (stdin is not a terminal)", shared.ErrMissingArgument)
	}

	var clientID string
	err := survey.AskOne(
		&survey.Input{Message: "Spotify app client id:", Help: "Found on the app's page in the Spotify developer dashboard"},
		&clientID,
		survey.WithValidator(survey.Required),
		survey.WithStdio(os.Stdin, os.Stderr, os.Stderr),
	)
	if err != nil {
		return "", fmt.Errorf("%w: client id prompt: %v", shared.ErrMissingArgument, err)
	}
	return clientID, nil
}
