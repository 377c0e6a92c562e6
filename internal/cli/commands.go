package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/liangyou/pyvm/internal/config"
	"github.com/liangyou/pyvm/internal/history"
	"github.com/liangyou/pyvm/internal/installer"
	"github.com/liangyou/pyvm/pkg/pyver"
)

// NewRootCmd 构建 pyvm 的命令树。
func NewRootCmd(app *App, appVersion string) *cobra.Command {
	root := &cobra.Command{
		Use:           "pyvm",
		Short:         "Manage side-by-side Python runtime versions",
		Long:          "pyvm installs and manages multiple Python runtimes side-by-side without ever touching the system default interpreter.",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newCheckCmd(app),
		newListCmd(app),
		newInstallCmd(app),
		newUpdateCmd(app),
		newUninstallCmd(app),
		newRollbackCmd(app),
		newHistoryCmd(app),
		newInfoCmd(app),
		newConfigCmd(app),
		newVenvCmd(app),
	)
	return root
}

func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compare the local interpreter against the latest upstream release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := app.Checker.CheckLatest(cmd.Context())
			if err != nil {
				return err
			}

			out := app.out()
			fmt.Fprintln(out, titleStyle.Render("Python version check"))
			fmt.Fprintf(out, "  Your version:   %s\n", result.Current)
			fmt.Fprintf(out, "  Latest version: %s\n", result.Latest)
			if result.UpToDate {
				fmt.Fprintln(out, okStyle.Render("  You are up-to-date."))
			} else {
				fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("  A new version (%s) is available.", result.Latest)))
			}
			return nil
		},
	}
}

func newListCmd(app *App) *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available Python release series",
		RunE: func(cmd *cobra.Command, _ []string) error {
			includeAll := showAll || app.Config.TUI.ShowEOLVersions
			releases, err := app.Lister.ListAvailable(cmd.Context(), includeAll)
			if err != nil {
				return err
			}
			if len(releases) == 0 {
				fmt.Fprintln(app.out(), "No release information available.")
				return nil
			}

			out := app.out()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%-8s %-12s %-14s %s", "SERIES", "LATEST", "STATUS", "SUPPORT UNTIL")))
			for _, rel := range releases {
				latest := rel.Latest
				if latest == "" {
					latest = "-"
				}
				until := rel.SupportUntil
				if until == "" {
					until = "-"
				}
				line := fmt.Sprintf("%-8s %-12s %-14s %s", rel.Series, latest, rel.Status, until)
				if rel.Status == "end-of-life" {
					line = dimStyle.Render(line)
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, dimStyle.Render("\nInstall with: pyvm install <version>"))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "include end-of-life series")
	return cmd
}

func newInstallCmd(app *App) *cobra.Command {
	var (
		yes     bool
		backend string
	)

	cmd := &cobra.Command{
		Use:   "install <version>",
		Short: "Install a Python version side-by-side",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := pyver.Parse(args[0])
			if err != nil {
				return err
			}

			ok, err := app.confirm(yes, fmt.Sprintf("Install Python %s side-by-side?", v))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(app.out(), "Installation cancelled.")
				return nil
			}

			return runInstall(cmd, app, v, backend)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	cmd.Flags().StringVar(&backend, "installer", "", "try this backend first (mise, asdf, pyenv, conda, brew, apt, official, source)")
	return cmd
}

// runInstall 执行一次安装并输出结果。聚合失败逐条打印后
// 抑制 cobra 对同一错误的重复输出。
func runInstall(cmd *cobra.Command, app *App, v pyver.Version, backend string) error {
	attempt, err := app.Installer.InstallPreferring(cmd.Context(), v, app.Platform, backend)
	if err != nil {
		var agg *installer.NoInstallerError
		if errors.As(err, &agg) {
			out := app.out()
			fmt.Fprintln(out, errStyle.Render(fmt.Sprintf("No installer could install Python %s:", v)))
			for _, f := range agg.Failures {
				fmt.Fprintf(out, "  %-10s %v\n", f.Strategy, f.Err)
			}
			cmd.SilenceErrors = true
		}
		return err
	}

	out := app.out()
	fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Installed Python %s via %s.", attempt.Version, attempt.Strategy)))
	fmt.Fprintln(out, dimStyle.Render("Your previous Python remains the system default."))
	return nil
}

func newUpdateCmd(app *App) *cobra.Command {
	var (
		yes     bool
		target  string
		backend string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Install the latest Python release side-by-side",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var v pyver.Version
			if target != "" {
				parsed, err := pyver.Parse(target)
				if err != nil {
					return err
				}
				v = parsed
			} else {
				result, err := app.Checker.CheckLatest(cmd.Context())
				if err != nil {
					return err
				}

				out := app.out()
				fmt.Fprintf(out, "  Your version:   %s\n", result.Current)
				fmt.Fprintf(out, "  Latest version: %s\n", result.Latest)
				if result.UpToDate {
					fmt.Fprintln(out, okStyle.Render("  You already have the latest version."))
					return nil
				}
				v = result.Latest
			}

			ok, err := app.confirm(yes, fmt.Sprintf("Install Python %s side-by-side?", v))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(app.out(), "Update cancelled.")
				return nil
			}

			return runInstall(cmd, app, v, backend)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	cmd.Flags().StringVar(&target, "version", "", "update to this exact version instead of the latest")
	cmd.Flags().StringVar(&backend, "installer", "", "try this backend first (mise, asdf, pyenv, conda, brew, apt, official, source)")
	return cmd
}

func newUninstallCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "uninstall <version>",
		Short: "Remove a managed Python version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := pyver.Parse(args[0])
			if err != nil {
				return err
			}

			ok, err := app.confirm(yes, fmt.Sprintf("Remove Python %s?", v))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(app.out(), "Removal cancelled.")
				return nil
			}

			if err := app.Installer.Uninstall(cmd.Context(), v, app.Platform); err != nil {
				return err
			}
			fmt.Fprintln(app.out(), okStyle.Render(fmt.Sprintf("Python %s removed.", v)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func newRollbackCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Undo the most recent installation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := app.History.Entries()
			if len(entries) == 0 {
				fmt.Fprintln(app.out(), "No rollback history found.")
				return history.ErrNothingToRollback
			}
			last := entries[len(entries)-1]

			ok, err := app.confirm(yes, fmt.Sprintf("Roll back by removing Python %s (installed via %s)?", last.Version, last.Installer))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(app.out(), "Rollback cancelled.")
				return nil
			}

			result, err := app.Rollbacker.Rollback(cmd.Context())
			if err != nil {
				return err
			}

			out := app.out()
			if result.Warning != "" {
				fmt.Fprintln(out, warnStyle.Render("Rollback completed with a warning: "+result.Warning))
			} else {
				fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Rolled back: Python %s removed.", result.Entry.Version)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show recorded installations",
		RunE: func(_ *cobra.Command, _ []string) error {
			entries := app.History.Entries()
			out := app.out()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No installations recorded.")
				return nil
			}

			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%-10s %-10s %-20s %s", "VERSION", "INSTALLER", "TIMESTAMP", "PATH")))
			for i := len(entries) - 1; i >= 0; i-- {
				e := entries[i]
				path := e.InstallPath
				if path == "" {
					path = "-"
				}
				fmt.Fprintf(out, "%-10s %-10s %-20s %s\n", e.Version, e.Installer, e.Timestamp.Format("2006-01-02 15:04:05"), path)
			}
			return nil
		},
	}
}

func newInfoCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show system and interpreter information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := app.out()
			fmt.Fprintln(out, titleStyle.Render("System information"))
			fmt.Fprintf(out, "  OS:          %s\n", app.Platform.OS)
			fmt.Fprintf(out, "  Arch:        %s\n", app.Platform.Arch)

			interp, err := app.Checker.LocalInterpreter(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, warnStyle.Render("  Python:      not found"))
			} else {
				fmt.Fprintf(out, "  Python:      %s\n", interp.Version)
				fmt.Fprintf(out, "  Interpreter: %s\n", interp.Path)
			}
			fmt.Fprintf(out, "  Config file: %s\n", app.ConfigPath)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := toml.Marshal(app.Config)
			if err != nil {
				return fmt.Errorf("cli: encode config: %w", err)
			}
			fmt.Fprint(app.out(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file if none exists",
		RunE: func(_ *cobra.Command, _ []string) error {
			created, err := config.Init(app.ConfigPath)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(app.out(), "Created %s\n", app.ConfigPath)
			} else {
				fmt.Fprintf(app.out(), "Config already exists at %s\n", app.ConfigPath)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <section.key> <value>",
		Short: "Update a single configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Set(app.Config, args[0], args[1])
			if err != nil {
				return err
			}
			if err := config.Save(app.ConfigPath, cfg); err != nil {
				return err
			}
			app.Config = cfg
			fmt.Fprintf(app.out(), "Set %s = %s\n", args[0], args[1])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		RunE: func(_ *cobra.Command, _ []string) error {
			out := app.out()
			fmt.Fprintln(out, app.ConfigPath)
			if _, err := os.Stat(app.ConfigPath); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, dimStyle.Render("(not created yet, run `pyvm config init`)"))
			}
			return nil
		},
	})

	return cmd
}
