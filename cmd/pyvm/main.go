package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/liangyou/pyvm/internal/checksum"
	"github.com/liangyou/pyvm/internal/cli"
	"github.com/liangyou/pyvm/internal/config"
	"github.com/liangyou/pyvm/internal/download"
	"github.com/liangyou/pyvm/internal/history"
	"github.com/liangyou/pyvm/internal/installer"
	"github.com/liangyou/pyvm/internal/platform"
	"github.com/liangyou/pyvm/internal/remote"
	"github.com/liangyou/pyvm/internal/venv"
	"github.com/liangyou/pyvm/internal/version"
)

const appVersion = "0.1.0"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfgPath, err := config.DefaultPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	cfg, cfgErr := config.Load(cfgPath)

	level := slog.LevelWarn
	if cfg.General.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if cfgErr != nil {
		logger.Warn("config file ignored, using defaults", "path", cfgPath, "error", cfgErr)
	}

	plat, err := platform.NewDetector().Detect()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout()}
	remoteClient := remote.NewClient(remote.WithHTTPClient(httpClient))
	verifier := checksum.NewVerifier(remoteClient)
	downloader := download.NewDownloader(
		download.WithHTTPClient(httpClient),
		download.WithMaxRetries(cfg.Download.MaxRetries),
	)

	historyPath, err := history.DefaultPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	ledger, err := history.Open(historyPath, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	runner := installer.NewExecRunner(os.Stdout, os.Stderr)
	strategies := installer.DefaultStrategies(runner, downloader, verifier, plat, cfg.Download.VerifyChecksum)
	orchestrator := installer.NewOrchestrator(strategies, ledger,
		installer.WithPreferred(cfg.General.PreferredInstaller),
		installer.WithLogger(logger),
	)

	uninstallers := make(map[string]history.Uninstaller, len(strategies))
	for _, s := range strategies {
		uninstallers[s.Name()] = s
	}
	engine := history.NewEngine(ledger, uninstallers, logger)

	venvDir, err := venv.DefaultDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	venvRegistry, err := venv.DefaultRegistryPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	venvs := venv.NewManager(venvDir, venvRegistry, runner, plat, logger)

	app := &cli.App{
		Config:     cfg,
		ConfigPath: cfgPath,
		Platform:   plat,
		Checker:    version.NewChecker(remoteClient, runner),
		Lister:     version.NewLister(remoteClient),
		Installer:  orchestrator,
		Rollbacker: engine,
		History:    ledger,
		Venvs:      venvs,
		Out:        os.Stdout,
	}

	return cli.NewRootCmd(app, appVersion).Execute()
}
