package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"parking-scheduler-backend/internal/decision"
	"parking-scheduler-backend/internal/garage"
	"parking-scheduler-backend/internal/logging"
	"parking-scheduler-backend/internal/parse"
	"parking-scheduler-backend/internal/scheduler"
)

var (
	simulateClients int
	simulateRounds  int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the garage interactively on the terminal",
	Long: "simulate asks for a slot and a stay for every client on every tier, parks them, " +
		"asks on the terminal whether expired clients stay longer and starts over once everyone has left.",
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simulateClients, "clients", 5, "Clients per tier")
	simulateCmd.Flags().IntVar(&simulateRounds, "rounds", 1, "Number of full cycles to run")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simulateClients < 1 {
		return fmt.Errorf("--clients must be at least 1, got %d", simulateClients)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	logging.Init(cfg.Logging.Level, true)

	layout, err := garage.Build(cfg.Tiers, cfg.Scheduler.Unit)
	if err != nil {
		return fmt.Errorf("invalid garage layout: %w", err)
	}

	in := bufio.NewReader(cmd.InOrStdin())
	sink := newConsoleSink(cmd.OutOrStdout(), 1024)
	defer sink.Close()
	out := io.Writer(sink)
	cycles := newCycleWatch()

	schedCfg := schedulerConfig(cfg)
	schedCfg.ResetWhenIdle = true
	sched := scheduler.New(layout.Catalog, schedCfg, scheduler.Options{
		Movement:  sink,
		Status:    sink,
		Decisions: decision.NewConsole(in, out, cfg.Scheduler.Unit),
		Journal:   cycles,
		Logger:    logging.Logger(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		_ = sched.Run(ctx)
	}()

	var all []string
	for _, s := range layout.Catalog.Slots() {
		all = append(all, s.ID)
	}
	fmt.Fprintf(out, "All available slots: %s\n", strings.Join(all, ", "))

	p := &prompter{in: in, out: out}
	for round := 1; round <= simulateRounds; round++ {
		plans, err := collectPlans(p, layout.Catalog, cfg.Scheduler.Unit, simulateClients)
		if err != nil {
			return err
		}
		if admitted := park(out, sched, plans); admitted == 0 {
			return errors.New("no client could be parked")
		}

		select {
		case <-cycles.done:
			if round < simulateRounds {
				fmt.Fprintln(out, "All clients have completed their time. Restarting from the first tier...")
			}
		case <-ctx.Done():
			return nil
		}
	}
	fmt.Fprintln(out, "All clients have completed their tasks.")
	return nil
}

// plan is one client's answers before it is submitted.
type plan struct {
	label   string
	minutes float64
	req     scheduler.Request
}

func park(out io.Writer, sched *scheduler.Scheduler, plans []plan) int {
	admitted := 0
	for _, pl := range plans {
		adm, err := sched.Submit(pl.req)
		switch {
		case err != nil:
			fmt.Fprintf(out, "%s could not be parked: %v\n", pl.label, err)
		case adm.Queued:
			admitted++
			fmt.Fprintf(out, "No slots available for %s. Added to waiting queue (position %d)...\n", pl.label, adm.Position)
		default:
			admitted++
			fmt.Fprintf(out, "%s staying in slot %s for %g minutes...\n", pl.label, adm.SlotID, pl.minutes)
		}
	}
	return admitted
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// collectPlans asks every client of every tier for a slot and a stay, in tier
// order, and re-asks until the answer fits the tier.
func collectPlans(p *prompter, catalog *scheduler.Catalog, unit time.Duration, clients int) ([]plan, error) {
	var plans []plan
	taken := make(map[string]bool)

	for _, t := range catalog.Tiers() {
		rule, _ := catalog.Rule(t)
		name := tierName(rule)

		var ids []string
		for _, s := range catalog.SlotsInTier(t) {
			ids = append(ids, s.ID)
		}

		for n := 1; n <= clients; n++ {
			label := fmt.Sprintf("Robot %d in %s", n, name)

			slotID, err := askSlot(p, catalog, rule, label, ids, taken)
			if err != nil {
				return nil, err
			}
			minutes, stay, err := askStay(p, rule, label, unit)
			if err != nil {
				return nil, err
			}
			if !rule.Queueing {
				taken[slotID] = true
			}

			plans = append(plans, plan{
				label:   label,
				minutes: minutes,
				req: scheduler.Request{
					OccupantID: fmt.Sprintf("%s-robot-%d", name, n),
					Tier:       t,
					SlotID:     slotID,
					Duration:   stay,
				},
			})
		}
	}
	return plans, nil
}

func askSlot(p *prompter, catalog *scheduler.Catalog, rule scheduler.TierRule, label string, ids []string, taken map[string]bool) (string, error) {
	question := fmt.Sprintf("Enter the parking slot number for %s: ", label)
	for {
		raw, err := p.ask(question)
		if err != nil {
			return "", err
		}
		question = fmt.Sprintf("Enter a new slot number for %s: ", label)

		slotID, err := parse.NormalizeSlot(raw)
		if err != nil || !catalog.IsValidSlotForTier(slotID, rule.Tier) {
			fmt.Fprintf(p.out, "Invalid slot number for %s. Available slots are: %s\n", tierName(rule), strings.Join(ids, ", "))
			continue
		}
		if taken[slotID] {
			fmt.Fprintf(p.out, "Slot %s is already occupied. Choose another.\n", slotID)
			continue
		}
		return slotID, nil
	}
}

func askStay(p *prompter, rule scheduler.TierRule, label string, unit time.Duration) (float64, time.Duration, error) {
	for {
		raw, err := p.ask(fmt.Sprintf("Enter the time (minutes) %s should stay: ", label))
		if err != nil {
			return 0, 0, err
		}
		minutes, err := parse.ParseMinutes(raw)
		if err != nil {
			fmt.Fprintln(p.out, "Please enter a positive number of minutes.")
			continue
		}
		stay, err := parse.StayDuration(minutes, unit)
		if err != nil {
			fmt.Fprintf(p.out, "%v. Please enter a new time.\n", err)
			continue
		}
		if rule.MaxDuration > 0 && stay > rule.MaxDuration {
			fmt.Fprintf(p.out, "%s is only for stays up to %g minutes. Please enter a new time.\n",
				tierName(rule), float64(rule.MaxDuration)/float64(unit))
			continue
		}
		return minutes, stay, nil
	}
}

func tierName(rule scheduler.TierRule) string {
	if rule.Name != "" {
		return rule.Name
	}
	return rule.Tier.String()
}
