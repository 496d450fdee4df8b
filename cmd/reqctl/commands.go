package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reqgather/internal/app"
	"reqgather/internal/auth"
	"reqgather/internal/config"
	"reqgather/internal/export"
	"reqgather/internal/logging"
)

// cli carries what PersistentPreRunE resolved for the subcommands.
type cli struct {
	envFile string
	cfg     *config.Config
	log     *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "reqctl",
		Short: "Administer the requirements interview service",
		Long: `reqctl inspects and edits interview sessions, runs the sitemap and
UI-prompt estimation for a finished interview and manages the Telegram
allowlist. It opens the session store directly, so stop the server first
when the store is badger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load(c.envFile)
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			c.cfg = cfg
			c.log, err = logging.New(cfg.LogLevel, "console")
			return err
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env", ".env", "dotenv file to load")

	root.AddCommand(c.sessionCmd(), c.estimateCmd(), c.usersCmd())
	return root
}

func (c *cli) sessionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Inspect stored interview sessions"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List live session ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.Storage(c.cfg, c.log)
			if err != nil {
				return err
			}
			defer a.Close()
			ids, err := a.Store.IDs(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print the stored state of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Storage(c.cfg, c.log)
			if err != nil {
				return err
			}
			defer a.Close()
			st, err := a.Store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session so the interview starts over",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Storage(c.cfg, c.log)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑 session %s deleted\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "history <id>",
		Short: "Print the exported question and answer history of a finished session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Storage(c.cfg, c.log)
			if err != nil {
				return err
			}
			defer a.Close()
			records, err := a.Files.History(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	})
	return cmd
}

func (c *cli) estimateCmd() *cobra.Command {
	var skipPrompts bool
	cmd := &cobra.Command{
		Use:   "estimate <id>",
		Short: "Generate the sitemap and UI prompts for a finished interview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			a, err := app.New(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			defer a.Close()

			var requirements map[string]any
			if err := a.Files.ReadJSON(export.KindRequirements, id, &requirements); err != nil {
				return err
			}
			profile, _, err := a.Branding.Profile(id)
			if err != nil {
				return err
			}
			sm, err := a.Estimator.Sitemap(cmd.Context(), requirements, profile)
			if err != nil {
				return err
			}
			if err := a.Files.WriteJSON(export.KindSitemap, id, sm); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗺 sitemap: %d pages (%s)\n", len(sm.Pages), sm.BusinessType)
			if skipPrompts {
				return nil
			}
			ps, err := a.Estimator.Prompts(cmd.Context(), sm)
			if err != nil {
				return err
			}
			if err := a.Files.WriteJSON(export.KindPrompts, id, ps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🎨 prompts: %d screens\n", len(ps.Screens))
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipPrompts, "sitemap-only", false, "stop after the sitemap")
	return cmd
}

func (c *cli) usersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Manage the Telegram allowlist"}
	open := func() (*auth.Service, error) {
		repo, err := auth.NewFileRepository(c.cfg.AllowlistPath)
		if err != nil {
			return nil, err
		}
		return auth.NewWithRepo(repo, nil)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List allowed users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := open()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME")
			for _, u := range svc.List() {
				fmt.Fprintf(w, "%d\t%s\n", u.ID, u.Username)
			}
			return w.Flush()
		},
	})

	var username string
	add := &cobra.Command{
		Use:   "add <telegram id>",
		Short: "Allow a Telegram user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid telegram id %q", args[0])
			}
			svc, err := open()
			if err != nil {
				return err
			}
			if err := svc.Upsert(auth.User{ID: id, Username: username}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ user %d allowed\n", id)
			return nil
		},
	}
	add.Flags().StringVar(&username, "username", "", "telegram username")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <telegram id>",
		Short: "Revoke a Telegram user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid telegram id %q", args[0])
			}
			svc, err := open()
			if err != nil {
				return err
			}
			if err := svc.Remove(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🚫 user %d removed\n", id)
			return nil
		},
	})
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
