package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/dhondt-calculator/internal/application"
	"github.com/eugenenazirov/dhondt-calculator/internal/hondt"
	"github.com/eugenenazirov/dhondt-calculator/internal/logging"
	"github.com/eugenenazirov/dhondt-calculator/internal/report"
	"github.com/eugenenazirov/dhondt-calculator/internal/scenario"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func main() {
	logger, err := logging.New("warn")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(os.Args[1:], os.Stdout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "dhondt: %v\n", err)
		os.Exit(1)
	}
}

type cli struct {
	app           *kingpin.Application
	referenceData *string
	format        *string

	allocate      *kingpin.CmdClause
	allocateSeats *int
	allocateVotes *[]string

	simulate             *kingpin.CmdClause
	simulateConstituency *string
	simulateShares       *[]string
	simulateShowAll      *bool

	constituencies *kingpin.CmdClause
	parties        *kingpin.CmdClause
}

func newCLI() *cli {
	app := kingpin.New("dhondt", "Allocate seats with the D'Hondt highest averages method")
	c := &cli{
		app:           app,
		referenceData: app.Flag("reference-data", "Path to a YAML reference data file (embedded data when empty)").String(),
		format:        app.Flag("format", "Output format").Short('o').Default(formatText).Enum(formatText, formatJSON),
	}

	c.allocate = app.Command("allocate", "Allocate seats among an explicit vote distribution")
	c.allocateSeats = c.allocate.Flag("seats", "Number of seats to allocate").Short('s').Required().Int()
	c.allocateVotes = c.allocate.Arg("votes", "Votes per party as PARTY=VOTES, in tie-break order").Required().Strings()

	c.simulate = app.Command("simulate", "Simulate a constituency from the baseline shares")
	c.simulateConstituency = c.simulate.Arg("constituency", "Constituency name").Required().String()
	c.simulateShares = c.simulate.Flag("share", "Override a party share as PARTY=SHARE, share in [0,1]; repeatable").Strings()
	c.simulateShowAll = c.simulate.Flag("show-all", "List parties without votes").Bool()

	c.constituencies = app.Command("constituencies", "List the registered constituencies")
	c.parties = app.Command("parties", "List the registered parties with their baseline share")

	return c
}

func run(args []string, stdout io.Writer, logger *zap.Logger) error {
	c := newCLI()
	c.app.UsageWriter(stdout)

	command, err := c.app.Parse(args)
	if err != nil {
		return err
	}

	switch command {
	case c.allocate.FullCommand():
		return c.runAllocate(stdout, logger)
	case c.simulate.FullCommand():
		return c.runSimulate(stdout, logger)
	case c.constituencies.FullCommand():
		return c.runConstituencies(stdout)
	case c.parties.FullCommand():
		return c.runParties(stdout)
	}
	return fmt.Errorf("unknown command %q", command)
}

func (c *cli) runAllocate(stdout io.Writer, logger *zap.Logger) error {
	votes, err := parseVotes(*c.allocateVotes)
	if err != nil {
		return err
	}

	result, err := hondt.Allocate(votes, *c.allocateSeats)
	if err != nil {
		return err
	}
	if result.Degenerate {
		logger.Warn("no votes cast, seats assigned by party order", zap.Int("seats", result.Seats))
	}

	if *c.format == formatJSON {
		return writeJSON(stdout, result)
	}
	return report.WriteAllocation(stdout, result)
}

func (c *cli) runSimulate(stdout io.Writer, logger *zap.Logger) error {
	reg, err := application.LoadRegistry(*c.referenceData)
	if err != nil {
		return err
	}

	shares, err := parseShares(*c.simulateShares)
	if err != nil {
		return err
	}

	state := scenario.NewState(reg)
	if err := state.SelectConstituency(*c.simulateConstituency); err != nil {
		return err
	}
	for _, entry := range shares {
		if err := state.SetShare(entry.Party, entry.Share); err != nil {
			return err
		}
	}
	state.SetShowAll(*c.simulateShowAll)

	outcome, err := state.Outcome()
	if err != nil {
		return err
	}
	if outcome.OverAllocated {
		logger.Warn("shares exceed the electorate",
			zap.String("constituency", outcome.Constituency.Name),
			zap.Int("assigned_votes", outcome.AssignedVotes),
			zap.Int("electors", outcome.Constituency.Electors),
		)
	}

	if *c.format == formatJSON {
		return writeJSON(stdout, outcome)
	}
	return report.WriteOutcome(stdout, outcome)
}

func (c *cli) runConstituencies(stdout io.Writer) error {
	reg, err := application.LoadRegistry(*c.referenceData)
	if err != nil {
		return err
	}
	if *c.format == formatJSON {
		return writeJSON(stdout, reg.Constituencies())
	}
	return report.WriteConstituencies(stdout, reg.Constituencies())
}

func (c *cli) runParties(stdout io.Writer) error {
	reg, err := application.LoadRegistry(*c.referenceData)
	if err != nil {
		return err
	}
	baseline, err := reg.Baseline()
	if err != nil {
		return err
	}
	if *c.format == formatJSON {
		return writeJSON(stdout, baseline)
	}
	return report.WriteParties(stdout, baseline)
}

// parseVotes reads PARTY=VOTES pairs, keeping their order.
func parseVotes(pairs []string) (hondt.Distribution, error) {
	votes := make(hondt.Distribution, 0, len(pairs))
	seen := make(map[hondt.Party]struct{}, len(pairs))
	for _, pair := range pairs {
		party, raw, err := splitPair(pair)
		if err != nil {
			return nil, err
		}
		count, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: votes for %q: %v", hondt.ErrInvalidInput, party, err)
		}
		if _, dup := seen[party]; dup {
			return nil, fmt.Errorf("%w: party %q listed twice", hondt.ErrInvalidInput, party)
		}
		seen[party] = struct{}{}
		votes = append(votes, hondt.PartyVotes{Party: party, Votes: count})
	}
	return votes, nil
}

// parseShares reads PARTY=SHARE pairs. A later pair for the same party wins.
func parseShares(pairs []string) (hondt.Shares, error) {
	var shares hondt.Shares
	for _, pair := range pairs {
		party, raw, err := splitPair(pair)
		if err != nil {
			return nil, err
		}
		share, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: share for %q: %v", hondt.ErrInvalidInput, party, err)
		}
		shares.Set(party, share)
	}
	return shares, nil
}

func splitPair(pair string) (hondt.Party, string, error) {
	name, value, ok := strings.Cut(pair, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: expected PARTY=VALUE, got %q", hondt.ErrInvalidInput, pair)
	}
	return hondt.Party(name), strings.TrimSpace(value), nil
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode JSON output: %w", err)
	}
	return nil
}
