package main

import (
	"github.com/spf13/cobra"

	"github.com/speccoll/arkmint/pkg/adapters/registry"
	"github.com/speccoll/arkmint/pkg/adapters/repository/sqlite"
	"github.com/speccoll/arkmint/pkg/adapters/search"
	"github.com/speccoll/arkmint/pkg/config"
	"github.com/speccoll/arkmint/pkg/core/services"
	"github.com/speccoll/arkmint/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "arkmint",
	Short:         "Mint, reuse and manage ARK identifiers against an EZID registry",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var outFileFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&outFileFlag, "out", "",
		"audit file appended on every successful mint or update (defaults to ARKMINT_OUT_FILE)")
	rootCmd.AddCommand(mintCmd, mintTSVCmd, updateCmd, viewCmd, downloadCmd, dbCmd)
}

// app bundles the wired-up adapters and service for one command invocation.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	repo     *sqlite.Repository
	registry *registry.Client
	search   *search.Client
	svc      *services.ArkService
}

func newApp() (*app, error) {
	cfg := config.Load()
	if outFileFlag != "" {
		cfg.OutFile = outFileFlag
	}
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)

	repo, err := sqlite.NewRepository(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	reg := registry.NewClient(registry.Options{
		BaseURL:     cfg.EZIDBaseURL,
		Username:    cfg.Username,
		Password:    cfg.Password,
		AuditFile:   cfg.OutFile,
		DownloadDir: cfg.DownloadDir,
		Log:         log,
	})

	console, err := search.NewClient(search.Options{
		BaseURL:  cfg.EZIDBaseURL,
		Username: cfg.Username,
		Password: cfg.Password,
		Owner:    cfg.Owner,
	})
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		repo:     repo,
		registry: reg,
		search:   console,
		svc:      services.NewArkService(repo, reg, console, log),
	}, nil
}

func (a *app) close() {
	a.repo.Close()
	_ = a.log.Sync()
}

// shoulderOrDefault resolves the minting shoulder: the flag wins, then the
// configured EZID_SHOULDER.
func (a *app) shoulderOrDefault(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Shoulder
}
