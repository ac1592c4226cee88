package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"eventcal/internal/api"
	"eventcal/internal/auth"
	"eventcal/internal/config"
	"eventcal/internal/logging"
	"eventcal/internal/poll"
	"eventcal/internal/ui"
)

var (
	cfgFile string
	baseURL string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "eventcal",
	Short: "A terminal calendar frontend for the event scheduler API",
	Long: `Eventcal is a terminal calendar application that browses, creates and
edits events stored in an event scheduler server, expanding recurring
events into their individual occurrences.`,
	RunE: runTUI,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL (overrides config)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
}

// app bundles the wired-up client stack shared by every subcommand.
type app struct {
	cfg    *config.Config
	auth   *auth.Manager
	client *api.Client
	log    zerolog.Logger
	closer io.Closer
}

func newApp() (*app, error) {
	if cfg == nil {
		initConfig()
	}

	log, closer, err := logging.Open(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	tokenPath, err := cfg.ResolveTokenPath()
	if err != nil {
		closer.Close()
		return nil, err
	}

	store := auth.NewStore(tokenPath)
	mgr := auth.NewManager(cfg.BaseURL, store, nil, log)
	client := api.New(cfg.BaseURL, mgr, nil, log)

	return &app{cfg: cfg, auth: mgr, client: client, log: log, closer: closer}, nil
}

func (a *app) Close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var poller *poll.Poller
	if cfg.RefreshCron != "" {
		poller, err = poll.New(cfg.RefreshCron, func(ctx context.Context) ([]api.Event, error) {
			return a.client.ListAllEvents(ctx, nil)
		}, a.log)
		if err != nil {
			return fmt.Errorf("invalid refresh schedule: %w", err)
		}
		poller.Start()
		defer poller.Stop()
	}

	model := ui.New(cfg, a.auth, a.client, poller, a.log)
	p := tea.NewProgram(model, tea.WithAltScreen())

	// Reload the config when the file changes on disk so display settings
	// take effect without a restart.
	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath, _ = config.Path()
	}
	if cfgPath != "" {
		watcher, werr := config.NewWatcher(cfgPath, func() {
			reloaded, lerr := config.Load(cfgPath)
			if lerr != nil {
				a.log.Warn().Err(lerr).Msg("config reload failed")
				return
			}
			p.Send(ui.ConfigReloadedMsg{Config: reloaded})
		})
		if werr != nil {
			a.log.Warn().Err(werr).Msg("config watcher unavailable")
		} else {
			defer watcher.Close()
		}
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
