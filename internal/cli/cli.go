// Package cli implements the ocshare command line: share management
// commands against an OCS sharing API plus an interactive shell.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Azelphur/ownCloud-share-tools/internal/config"
	"github.com/Azelphur/ownCloud-share-tools/internal/logger"
	"github.com/Azelphur/ownCloud-share-tools/internal/ocs"
	"github.com/Azelphur/ownCloud-share-tools/internal/syncfolder"
)

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

var errUsage = errors.New("usage")

// App wires the CLI to its environment.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Version is printed by -version.
	Version string
	// PasswordPrompt asks for the account password when none is configured.
	// Defaults to a hidden terminal prompt on Stdin.
	PasswordPrompt func(prompt string) (string, error)
}

type command struct {
	name    string
	usage   string
	summary string
	// offline commands never contact the server.
	offline bool
	run     func(ctx context.Context, s *session, args []string) error
}

var commands = map[string]command{}

func register(c command) {
	commands[c.name] = c
}

// session is the per-invocation state shared by the commands.
type session struct {
	cfg    *config.ClientConfig
	log    *zap.Logger
	client *ocs.Client
	stdin  io.Reader
	out    io.Writer
}

// folders loads the desktop client's sync folder descriptors.
func (s *session) folders() ([]syncfolder.Descriptor, error) {
	dir := s.cfg.OwnCloudDir
	if dir == "" {
		var err error
		if dir, err = syncfolder.DefaultConfigDir(); err != nil {
			return nil, err
		}
	}
	folders, err := syncfolder.Load(dir)
	if err != nil {
		return nil, err
	}
	s.log.Debug("loaded sync folders", zap.String("dir", dir), zap.Int("count", len(folders)))
	return folders, nil
}

// cloudPath maps a local path to its cloud path through the sync folders.
func (s *session) cloudPath(local string) (string, error) {
	abs, err := filepath.Abs(local)
	if err != nil {
		return "", err
	}
	folders, err := s.folders()
	if err != nil {
		return "", err
	}
	p, ok := syncfolder.Resolve(abs, folders)
	if !ok {
		return "", fmt.Errorf("%s is not inside a sync folder", abs)
	}
	return p, nil
}

// Run executes the command line args (without the program name) and returns
// the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("ocshare", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	var (
		cfgPath  = fs.String("config", config.DefaultClientConfigPath(), "path to config file")
		baseURL  = fs.String("url", "", "instance base URL")
		username = fs.String("username", "", "account login")
		password = fs.String("password", "", "account password (prompted for when unset)")
		caFile   = fs.String("ca", "", "PEM file with CA certificates to trust")
		ocDir    = fs.String("owncloud-dir", "", "desktop client data directory holding folders/")
		logLevel = fs.String("log-level", "", "log level: debug, info, warn, error")
		showVer  = fs.Bool("version", false, "show version")
	)
	fs.Usage = func() { a.usage(fs) }
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if *showVer {
		fmt.Fprintf(a.Stdout, "ocshare %s\n", a.Version)
		return ExitOK
	}
	if fs.NArg() == 0 {
		a.usage(fs)
		return ExitUsage
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(a.Stderr, "unknown command %q\n", fs.Arg(0))
		a.usage(fs)
		return ExitUsage
	}

	cfg, err := config.LoadClient(*cfgPath)
	if err != nil {
		fmt.Fprintln(a.Stderr, "ocshare:", err)
		return ExitFailure
	}
	overlay(&cfg.URL, *baseURL)
	overlay(&cfg.Username, *username)
	overlay(&cfg.Password, *password)
	overlay(&cfg.CAFile, *caFile)
	overlay(&cfg.OwnCloudDir, *ocDir)
	overlay(&cfg.Logging.Level, strings.ToLower(*logLevel))

	l := logger.New()
	if err := l.InitConsole(cfg.Logging.Level, a.Stderr); err != nil {
		fmt.Fprintln(a.Stderr, "ocshare: invalid log level:", err)
		return ExitUsage
	}
	defer func() { _ = l.Log.Sync() }()

	s := &session{cfg: cfg, log: l.Log, stdin: a.Stdin, out: a.Stdout}
	if !cmd.offline {
		if s.client, err = a.connect(cfg, l.Log); err != nil {
			fmt.Fprintln(a.Stderr, "ocshare:", err)
			return ExitFailure
		}
	}

	err = cmd.run(ctx, s, fs.Args()[1:])
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		fmt.Fprintf(a.Stderr, "usage: ocshare %s %s\n", cmd.name, cmd.usage)
		return ExitUsage
	default:
		fmt.Fprintln(a.Stderr, "ocshare:", describe(err))
		return ExitFailure
	}
}

func (a *App) connect(cfg *config.ClientConfig, log *zap.Logger) (*ocs.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Password == "" {
		prompt := a.PasswordPrompt
		if prompt == nil {
			prompt = func(p string) (string, error) { return terminalPassword(a.Stdin, a.Stderr, p) }
		}
		pw, err := prompt(fmt.Sprintf("Password for %s: ", cfg.Username))
		if err != nil {
			return nil, err
		}
		cfg.Password = pw
	}
	httpClient, err := ocs.NewHTTPClient(cfg.CAFile, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return ocs.New(ocs.Config{
		BaseURL:    cfg.URL,
		Username:   cfg.Username,
		Password:   cfg.Password,
		HTTPClient: httpClient,
		Logger:     log,
	}), nil
}

func (a *App) usage(fs *flag.FlagSet) {
	fmt.Fprintln(a.Stderr, "usage: ocshare [global flags] <command> [args]")
	fmt.Fprintln(a.Stderr, "\ncommands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(a.Stderr, "  %-10s %s\n", n, commands[n].summary)
	}
	fmt.Fprintln(a.Stderr, "\nglobal flags:")
	fs.PrintDefaults()
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// describe renders err for the user.
func describe(err error) string {
	var (
		notFound  *ocs.NotFoundError
		apiErr    *ocs.APIError
		transport *ocs.TransportError
	)
	switch {
	case errors.As(err, &notFound):
		return fmt.Sprintf("share #%d not found", notFound.ID)
	case errors.As(err, &apiErr):
		return fmt.Sprintf("server refused the request (%d): %s", apiErr.StatusCode, apiErr.Message)
	case errors.As(err, &transport):
		return "cannot reach server: " + transport.Error()
	}
	return err.Error()
}

// Main runs the CLI against the process environment.
func Main(version string) int {
	app := &App{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr, Version: version}
	return app.Run(context.Background(), os.Args[1:])
}
