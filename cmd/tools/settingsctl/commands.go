package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/settings"
)

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "settingsctl",
		Short:         "Operate the storefront checkout settings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.out)
	root.AddCommand(
		c.getCmd(),
		c.setCmd(),
		c.pathsCmd(),
		c.exportCmd(),
		c.importCmd(),
		c.migrateCmd(),
		c.seedCmd(),
		c.tokenCmd(),
	)
	return root
}

// withBackend opens the backend for the duration of fn.
func (c *cli) withBackend(ctx context.Context, fn func(*backend) error) error {
	b, release, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(b)
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [path]",
		Short: "Print the settings, or a single dotted path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(b *backend) error {
				current, err := b.Settings.Get(cmd.Context())
				if err != nil {
					return err
				}
				if len(args) == 1 {
					v, err := current.Get(args[0])
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), v)
					return nil
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(current)
			})
		},
	}
}

func (c *cli) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set path=value [path=value...]",
		Short: "Change one or more dotted paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes := make(map[string]string, len(args))
			for _, arg := range args {
				path, value, ok := strings.Cut(arg, "=")
				if !ok || strings.TrimSpace(path) == "" {
					return fmt.Errorf("expected path=value, got %q", arg)
				}
				changes[strings.TrimSpace(path)] = strings.TrimSpace(value)
			}
			return c.withBackend(cmd.Context(), func(b *backend) error {
				updated, err := b.Settings.Patch(cmd.Context(), changes)
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(changes))
				for k := range changes {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					v, _ := updated.Get(k)
					fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", k, v)
				}
				return nil
			})
		},
	}
}

func (c *cli) pathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "List the dotted paths accepted by get and set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, p := range settings.Paths() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withBackend(cmd.Context(), func(b *backend) error {
				current, err := b.Settings.Get(cmd.Context())
				if err != nil {
					return err
				}
				data, err := settings.ExportYAML(current)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				return os.WriteFile(output, data, 0o644)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write, stdout when empty")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import file.yaml",
		Short: "Replace the settings with a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := settings.ImportYAML(data)
			if err != nil {
				return err
			}
			return c.withBackend(cmd.Context(), func(b *backend) error {
				saved, err := b.Settings.Replace(cmd.Context(), doc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "settings replaced at %s\n", saved.UpdatedAt.Format(time.RFC3339))
				return nil
			})
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if !statusOnly {
				if err := c.migrate(cfg.DatabaseURL); err != nil {
					return err
				}
			}
			v, dirty, err := c.version(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d dirty=%t\n", v, dirty)
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "print the schema version without migrating")
	return cmd
}

// demoCoupons are created by seed. Existing codes are left untouched.
var demoCoupons = []coupon.CreateInput{
	{Code: "WELCOME10", Discount: 10, UsageLimit: 1000},
	{Code: "SPRING25", Discount: 25, UsageLimit: 200},
	{Code: "VIP50", Discount: 50, UsageLimit: 10},
}

func (c *cli) seedCmd() *cobra.Command {
	var validFor time.Duration
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Store default settings if none exist and create demo coupons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return c.withBackend(ctx, func(b *backend) error {
				if _, found, err := b.Settings.Store.Load(ctx); err != nil {
					return err
				} else if !found {
					if _, err := b.Settings.Replace(ctx, settings.Defaults()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "default settings stored")
				}
				expires := time.Now().Add(validFor).UTC()
				for _, in := range demoCoupons {
					in.ExpiresAt = expires
					_, err := b.Coupons.Create(ctx, in)
					switch {
					case errors.Is(err, coupon.ErrDuplicateCode):
						fmt.Fprintf(cmd.OutOrStdout(), "coupon %s exists\n", in.Code)
					case err != nil:
						return err
					default:
						fmt.Fprintf(cmd.OutOrStdout(), "coupon %s created (%.0f%%)\n", in.Code, in.Discount)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&validFor, "valid-for", 90*24*time.Hour, "lifetime of seeded coupons")
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		roles []string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token subject",
		Short: "Sign an access token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.verifier()
			if err != nil {
				return err
			}
			token, err := v.Issue(args[0], roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to grant, repeatable")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
