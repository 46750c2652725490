package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChuLiYu/workclip/internal/journal"
)

func buildJournalCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect a playback journal",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "journal file, .gz archives included (default: journal.path from config)")

	resolve := func() (string, error) {
		if path != "" {
			return path, nil
		}
		cfg, err := loadConfig(configFile)
		if err != nil {
			return "", err
		}
		return cfg.Journal.Path, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print every event in human-readable form",
		RunE: func(c *cobra.Command, args []string) error {
			p, err := resolve()
			if err != nil {
				return err
			}
			return journal.Dump(p, c.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Verify checksums and sequence order",
		RunE: func(c *cobra.Command, args []string) error {
			p, err := resolve()
			if err != nil {
				return err
			}
			if err := journal.Validate(p); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "✓ %s is valid\n", p)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print event counts as JSON",
		RunE: func(c *cobra.Command, args []string) error {
			p, err := resolve()
			if err != nil {
				return err
			}
			st, err := journal.GetStats(p)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	})

	return cmd
}
