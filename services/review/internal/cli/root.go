// Package cli implements reviewctl, the terminal client for doctor reviews.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/healthapp/reviews/pkg/httpclient"
	"github.com/healthapp/reviews/pkg/logger"
	"github.com/healthapp/reviews/services/review/internal/client"
	"github.com/healthapp/reviews/services/review/internal/session"
)

// Config keys.
const (
	KeyAPIURL      = "api_url"
	KeyTimeout     = "timeout"
	KeyDisplayName = "display_name"
	KeyLogLevel    = "log_level"
)

// Options carries the dependencies the commands are built with. Zero fields
// get production defaults.
type Options struct {
	Out    io.Writer
	ErrOut io.Writer
	// Store overrides the config-file session store.
	Store session.Store
	// HTTP overrides the circuit-breaking HTTP client.
	HTTP client.HTTPDoer
}

// app is the state shared by every command of one invocation.
type app struct {
	opts    Options
	ui      *UI
	v       *viper.Viper
	logger  *slog.Logger
	session *session.Session
	client  *client.Client

	configPath string
}

// NewRootCommand builds the reviewctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}
	a := &app{
		opts: opts,
		ui:   &UI{Out: opts.Out, ErrOut: opts.ErrOut},
		v:    viper.New(),
	}

	root := &cobra.Command{
		Use:   "reviewctl",
		Short: "Read, write and vote on doctor reviews",
		Long: `reviewctl talks to the review service. Sign in once with
'reviewctl login --token <jwt>'; the token is kept in the config file.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.ErrOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default ~/.config/reviewctl/config.yaml)")
	flags.String("api-url", "", "Review service base URL")
	_ = a.v.BindPFlag(KeyAPIURL, flags.Lookup("api-url"))

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.reviewsCommand(),
		a.ratingCommand(),
	)
	return root
}

func (a *app) init(ctx context.Context) error {
	if a.configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		a.configPath = filepath.Join(home, ".config", "reviewctl", "config.yaml")
	}
	a.v.SetConfigFile(a.configPath)
	a.v.SetConfigType("yaml")
	a.v.SetEnvPrefix("REVIEWCTL")
	a.v.AutomaticEnv()

	a.v.SetDefault(KeyAPIURL, "http://localhost:8010")
	a.v.SetDefault(KeyTimeout, 10*time.Second)
	a.v.SetDefault(KeyDisplayName, "")
	a.v.SetDefault(KeyLogLevel, "warn")
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", a.configPath, err)
		}
	}

	a.logger = logger.NewWithWriter("reviewctl", a.v.GetString(KeyLogLevel), a.opts.ErrOut)

	store := a.opts.Store
	if store == nil {
		store = session.NewFileStore(a.v, a.configPath)
	}
	a.session = session.New(store)
	if err := a.session.Load(ctx); err != nil {
		return err
	}

	doer := a.opts.HTTP
	if doer == nil {
		cfg := httpclient.DefaultConfig()
		cfg.Timeout = a.v.GetDuration(KeyTimeout)
		doer = httpclient.NewBreakerClient(httpclient.New(cfg), httpclient.DefaultBreakerConfig("review-service"), a.logger)
	}
	a.client = client.New(doer, a.v.GetString(KeyAPIURL), a.session, a.logger,
		client.WithDisplayName(a.v.GetString(KeyDisplayName)))
	return nil
}

// requireSignIn fails commands that need a token.
func (a *app) requireSignIn() error {
	if !a.session.SignedIn() {
		return fmt.Errorf("not signed in: run 'reviewctl login --token <jwt>'")
	}
	return nil
}

// requestContext tags outgoing calls with a fresh correlation ID.
func requestContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.WithCorrelationID(ctx, uuid.NewString())
}
