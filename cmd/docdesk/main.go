package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/apiclient"
	"github.com/dharsanguruparan/DocDesk/internal/config"
	"github.com/dharsanguruparan/DocDesk/internal/logger"
	"github.com/dharsanguruparan/DocDesk/internal/session"
)

var errLoginRequired = errors.New("not logged in, run: docdesk login")

// app carries what every command needs once flags are parsed.
type app struct {
	configPath string
	cfg        config.ClientConfig
	log        *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := newRootCommand(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "docdesk: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docdesk",
		Short: "Digitalize paper documents into the document archive",
		Long: `docdesk captures paper documents page by page, describes them with the
metadata the archive requires and uploads them as a single PDF.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(a.configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Environment, cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	defaultConfig := ""
	if dir, err := os.UserConfigDir(); err == nil {
		defaultConfig = filepath.Join(dir, "docdesk", "config.yaml")
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfig, "Client configuration file")
	cmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newDocTypesCmd(a),
		newSearchCmd(a),
		newDigitalizeCmd(a),
	)
	return cmd
}

// client returns an API client without credentials.
func (a *app) client(opts ...apiclient.Option) *apiclient.Client {
	opts = append([]apiclient.Option{
		apiclient.WithTimeout(a.cfg.APITimeout),
		apiclient.WithStaffPageSize(a.cfg.StaffPageSize),
	}, opts...)
	return apiclient.NewClient(a.cfg.APIBaseURL, opts...)
}

// authedClient loads the saved session and returns a client carrying its
// token.
func (a *app) authedClient() (*apiclient.Client, session.Session, error) {
	sess, err := session.Load(a.cfg.SessionFile, time.Now())
	if errors.Is(err, session.ErrNoSession) {
		return nil, session.Session{}, errLoginRequired
	}
	if err != nil {
		return nil, session.Session{}, err
	}
	if sess.BaseURL != a.cfg.APIBaseURL {
		return nil, session.Session{}, fmt.Errorf("logged in to %s, not %s: %w", sess.BaseURL, a.cfg.APIBaseURL, errLoginRequired)
	}
	return a.client(apiclient.WithToken(apiclient.StaticToken(sess.Token))), sess, nil
}

// expired drops the saved session when the backend rejected its token.
func (a *app) expired(err error) error {
	if !apiclient.IsSessionExpired(err) {
		return err
	}
	if clearErr := session.Clear(a.cfg.SessionFile); clearErr != nil {
		a.log.Warn("clear session", zap.Error(clearErr))
	}
	return fmt.Errorf("session expired: %w", errLoginRequired)
}
