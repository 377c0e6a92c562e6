package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liangyou/pyvm/internal/venv"
)

func newVenvCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "venv",
		Short: "Manage Python virtual environments",
	}
	cmd.AddCommand(
		newVenvCreateCmd(app),
		newVenvListCmd(app),
		newVenvRemoveCmd(app),
	)
	return cmd
}

func newVenvCreateCmd(app *App) *cobra.Command {
	var (
		pythonVersion string
		path          string
		systemSite    bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a virtual environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := app.Venvs.Create(cmd.Context(), args[0], pythonVersion, path, systemSite)
			if err != nil {
				return err
			}

			out := app.out()
			fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Created virtual environment %q at %s", args[0], entry.Path)))
			fmt.Fprintln(out, dimStyle.Render("Activate with: "+venv.ActivateCommandFor(entry.Path, app.Platform)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&pythonVersion, "python", "p", "", "python version to base the environment on (default: system interpreter)")
	cmd.Flags().StringVar(&path, "path", "", "create the environment at this path instead of the default directory")
	cmd.Flags().BoolVar(&systemSite, "system-site-packages", false, "give the environment access to system site-packages")
	return cmd
}

func newVenvListCmd(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List virtual environments",
		RunE: func(_ *cobra.Command, _ []string) error {
			infos, err := app.Venvs.List()
			if err != nil {
				return err
			}

			out := app.out()
			if asJSON {
				data, err := json.MarshalIndent(infos, "", "  ")
				if err != nil {
					return fmt.Errorf("cli: encode venv list: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(infos) == 0 {
				fmt.Fprintln(out, "No virtual environments found.")
				return nil
			}

			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%-16s %-10s %-10s %s", "NAME", "PYTHON", "STATUS", "PATH")))
			for _, info := range infos {
				status := "ok"
				switch {
				case !info.Exists:
					status = "missing"
				case !info.Registered:
					status = "untracked"
				}
				line := fmt.Sprintf("%-16s %-10s %-10s %s", info.Name, info.PythonVersion, status, info.Path)
				if !info.Exists {
					line = dimStyle.Render(line)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newVenvRemoveCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a virtual environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := app.confirm(yes, fmt.Sprintf("Remove virtual environment %q?", args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(app.out(), "Removal cancelled.")
				return nil
			}

			if err := app.Venvs.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(app.out(), okStyle.Render(fmt.Sprintf("Removed virtual environment %q.", args[0])))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}
