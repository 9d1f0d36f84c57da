// Package report renders allocation results and scenario outcomes as aligned
// text tables for terminals.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/eugenenazirov/dhondt-calculator/internal/hondt"
	"github.com/eugenenazirov/dhondt-calculator/internal/registry"
	"github.com/eugenenazirov/dhondt-calculator/internal/scenario"
)

// electedMark flags a quotient that won a seat.
const electedMark = "*"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// WriteAllocation renders the quotient table of result, marking elected
// quotients, followed by the seat tally.
func WriteAllocation(w io.Writer, result hondt.Result) error {
	tw := newTable(w)

	header := []string{"PARTY"}
	for divisor := 1; divisor <= result.Seats; divisor++ {
		header = append(header, fmt.Sprintf("/%d", divisor))
	}
	header = append(header, "SEATS")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range result.Quotients {
		won := result.Tally.Of(row.Party)
		line := []string{string(row.Party)}
		for i, value := range row.Values {
			line = append(line, formatCell(value, i+1 <= won))
		}
		line = append(line, fmt.Sprint(won))
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d seats, %s votes\n", result.Seats, humanize.Comma(int64(result.TotalVotes)))
	if err != nil {
		return err
	}
	if result.Degenerate {
		_, err = fmt.Fprintln(w, "warning: no votes were cast, seats follow party order")
	}
	return err
}

// WriteOutcome renders a scenario outcome: one row per party with its votes,
// share, seats and displayed quotients, then the electorate summary.
func WriteOutcome(w io.Writer, outcome scenario.Outcome) error {
	c := outcome.Constituency
	_, err := fmt.Fprintf(w, "%s: %d seats, %s electors\n\n", c.Name, c.Seats, humanize.Comma(int64(c.Electors)))
	if err != nil {
		return err
	}

	tw := newTable(w)
	header := []string{"PARTY", "VOTES", "SHARE", "SEATS"}
	for divisor := 1; divisor <= outcome.Divisors; divisor++ {
		header = append(header, fmt.Sprintf("/%d", divisor))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range outcome.Rows {
		line := []string{
			string(row.Party),
			humanize.Comma(int64(row.Votes)),
			formatPercent(row.Share),
			fmt.Sprint(row.Seats),
		}
		for _, cell := range row.Cells {
			line = append(line, formatCell(cell.Quotient, cell.Elected))
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "\nassigned votes: %s\nunassigned: %d%%\ngallagher index: %.2f\n",
		humanize.Comma(int64(outcome.AssignedVotes)), outcome.UnassignedPercent, outcome.Gallagher)
	if err != nil {
		return err
	}
	if outcome.OverAllocated {
		if _, err := fmt.Fprintln(w, "warning: shares exceed the electorate"); err != nil {
			return err
		}
	}
	if outcome.Allocation.Degenerate {
		_, err = fmt.Fprintln(w, "warning: no votes were cast, seats follow party order")
	}
	return err
}

// WriteConstituencies lists constituencies with their electors and seats.
func WriteConstituencies(w io.Writer, constituencies []registry.Constituency) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "CONSTITUENCY\tELECTORS\tSEATS")

	seats := 0
	for _, c := range constituencies {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Name, humanize.Comma(int64(c.Electors)), c.Seats)
		seats += c.Seats
	}
	fmt.Fprintf(tw, "TOTAL\t\t%d\n", seats)
	return tw.Flush()
}

// WriteParties lists parties with their baseline share.
func WriteParties(w io.Writer, baseline hondt.Shares) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "PARTY\tBASELINE")
	for _, entry := range baseline {
		fmt.Fprintf(tw, "%s\t%s\n", entry.Party, formatPercent(entry.Share))
	}
	return tw.Flush()
}

func formatCell(quotient int, elected bool) string {
	cell := humanize.Comma(int64(quotient))
	if elected {
		cell += electedMark
	}
	return cell
}

func formatPercent(share float64) string {
	return fmt.Sprintf("%.2f%%", share*100)
}
