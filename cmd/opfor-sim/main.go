package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/cinderpeak/opfor/internal/ai"
)

// envConfig carries settings that come from the environment rather than
// flags, so CI wrappers can point every invocation at the same files.
type envConfig struct {
	TuningPath string `env:"OPFOR_TUNING"`
	AuditPath  string `env:"OPFOR_AUDIT_DB"`
	Verbose    bool   `env:"OPFOR_VERBOSE"`
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfg envConfig
	root := &cobra.Command{
		Use:           "opfor-sim",
		Short:         "Headless adversarial NPC decision stack",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := env.Parse(&cfg); err != nil {
				return fmt.Errorf("environment: %w", err)
			}
			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
	root.AddCommand(runCmd(&cfg), tuningCmd(&cfg), auditCmd(&cfg))
	return root
}

func loadTuning(cfg *envConfig, flagPath string) (ai.Tuning, error) {
	path := flagPath
	if path == "" {
		path = cfg.TuningPath
	}
	if path == "" {
		return ai.DefaultTuning(), nil
	}
	return ai.LoadTuning(path)
}

func runCmd(cfg *envConfig) *cobra.Command {
	var (
		ticks       int
		tuningPath  string
		snapshotOut string
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a headless demo engagement and print the event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			tuning, err := loadTuning(cfg, tuningPath)
			if err != nil {
				return err
			}

			var audit ai.ProposalRecorder
			if cfg.AuditPath != "" {
				ledger, err := ai.OpenAuditLog(cfg.AuditPath)
				if err != nil {
					return err
				}
				defer ledger.Close()
				audit = ledger
			}

			d, err := ai.NewDirector(tuning, audit, slog.Default())
			if err != nil {
				return err
			}
			sl := ai.NewSimLog(verbose)
			d.AttachSimLog(sl)

			if err := seedDemoScenario(d); err != nil {
				return err
			}
			if err := d.Chair().Start(); err != nil {
				return err
			}
			dt := 1.0 / float64(tuning.Sim.TickRateHz)
			for i := 0; i < ticks; i++ {
				d.Tick(dt)
			}

			fmt.Print(sl.Format())
			fmt.Print(sl.Summary(int(d.Chair().Tick()), d))

			if snapshotOut != "" {
				blob, err := d.Snapshot()
				if err != nil {
					return err
				}
				if err := os.WriteFile(snapshotOut, blob, 0o644); err != nil {
					return fmt.Errorf("write snapshot: %w", err)
				}
				fmt.Printf("Snapshot written: %s (%d bytes)\n", snapshotOut, len(blob))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", 600, "ticks to simulate")
	cmd.Flags().StringVar(&tuningPath, "tuning", "", "tuning YAML (overrides OPFOR_TUNING)")
	cmd.Flags().StringVar(&snapshotOut, "snapshot-out", "", "write a state snapshot after the run")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "record per-tick detail events")
	return cmd
}

// seedDemoScenario stands up one five-man squad engaging a single target.
func seedDemoScenario(d *ai.Director) error {
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("opfor-%d", i)
		d.RegisterAgent(ai.Agent{
			ID:      id,
			Pos:     ai.Vec2{X: float64(i) * 4, Y: 0},
			Facing:  90,
			Faction: "opfor",
		}, ai.DefaultPersonality(), 75)
		ids = append(ids, id)
	}
	if err := d.FormSquad("alpha", ids); err != nil {
		return err
	}
	d.SetPrimaryTarget(ai.Vec2{X: 10, Y: 35}, 270)
	return nil
}

func tuningCmd(cfg *envConfig) *cobra.Command {
	var tuningPath string
	cmd := &cobra.Command{
		Use:   "tuning",
		Short: "Print the effective tuning values",
		RunE: func(cmd *cobra.Command, args []string) error {
			tuning, err := loadTuning(cfg, tuningPath)
			if err != nil {
				return err
			}
			fmt.Printf("%+v\n", tuning)
			return nil
		},
	}
	cmd.Flags().StringVar(&tuningPath, "tuning", "", "tuning YAML (overrides OPFOR_TUNING)")
	return cmd
}

func auditCmd(cfg *envConfig) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent governance proposals from the audit ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.AuditPath == "" {
				return fmt.Errorf("OPFOR_AUDIT_DB is not set")
			}
			ledger, err := ai.OpenAuditLog(cfg.AuditPath)
			if err != nil {
				return err
			}
			defer ledger.Close()
			entries, err := ledger.Recent(limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				status := "rejected"
				if e.Approved {
					status = "approved"
				}
				fmt.Printf("%-36s t=%-8d tier=%d %-10s %-10s %s %s\n",
					e.ID, e.SubmittedTick, e.Tier, e.Subsystem, e.Type, status, e.Reason)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "entries to show")
	return cmd
}
