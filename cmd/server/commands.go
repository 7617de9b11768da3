package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/booking"
	"github.com/iliyamo/class-booking/internal/database"
	"github.com/iliyamo/class-booking/internal/repository"
	"github.com/iliyamo/class-booking/internal/schedule"
	"github.com/iliyamo/class-booking/internal/utils"
)

func newMigrateCmd() *cobra.Command {
	var to int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			var v int
			if to > 0 {
				v, err = database.MigrateTo(cmd.Context(), a.db, a.dialect, to)
			} else {
				v, err = database.Migrate(cmd.Context(), a.db, a.dialect)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (%s)\n", v, a.dialect.Name())
			return nil
		},
	}
	cmd.Flags().IntVar(&to, "to", 0, "stop at this version (default: latest)")
	return cmd
}

func newExpandCmd() *cobra.Command {
	var file string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "expand-templates -f FILE",
		Short: "Create dated sessions from recurring weekday templates",
		Long: `Reads templates of the form

  class_id: 12
  capacity: 10
  start_date: 2026-01-05
  end_date: 2026-03-30
  weekday: monday
  start_time: "18:00"
  end_time: "19:30"

(several may be separated by ---) and creates one session per matching day.
Days that overlap an existing active session are skipped and listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("-f is required")
			}
			templates, err := schedule.ParseFile(file)
			if err != nil {
				return err
			}
			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")

			if dryRun {
				var all []booking.CreateSessionCmd
				for _, t := range templates {
					cmds, err := t.Expand()
					if err != nil {
						return err
					}
					all = append(all, cmds...)
				}
				return out.Encode(all)
			}

			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			svc := booking.NewSessionService(repository.NewSessionRepo(a.db, a.dialect), nil, a.log, time.Now, a.cfg.Location())
			rep, err := schedule.Import(cmd.Context(), svc, templates, a.log)
			a.log.Info("templates expanded", zap.Int("created", len(rep.Created)),
				zap.Int("skipped", len(rep.Skipped)), zap.Int("failed", len(rep.Failed)))
			if encErr := out.Encode(rep); encErr != nil && err == nil {
				err = encErr
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML template file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the sessions without creating them")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var sub, caps string
	var ttl int
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireServe(); err != nil {
				return err
			}
			if sub == "" {
				return errors.New("--sub is required")
			}
			var list []string
			for _, c := range strings.Split(caps, ",") {
				c = strings.TrimSpace(c)
				switch c {
				case "":
				case utils.CapEdit, utils.CapDelete:
					list = append(list, c)
				default:
					return fmt.Errorf("unknown capability %q", c)
				}
			}
			if ttl <= 0 {
				ttl = cfg.AccessTTLMin
			}
			tok, err := utils.NewAccessToken(cfg.JWTSecret, sub, list, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.Exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "operator name")
	cmd.Flags().StringVar(&caps, "caps", utils.CapEdit, "comma separated capabilities (edit, delete)")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (default ACCESS_TOKEN_TTL_MIN)")
	return cmd
}

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [KEY]",
		Short: "Print the bcrypt hash to put in INTEGRATION_KEY_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				sc := bufio.NewScanner(os.Stdin)
				if sc.Scan() {
					key = strings.TrimSpace(sc.Text())
				}
			}
			if key == "" {
				return errors.New("empty key")
			}
			hash, err := utils.HashKey(key, cfg.BcryptCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
