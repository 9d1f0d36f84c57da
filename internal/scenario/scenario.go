// Package scenario turns a constituency and a set of vote shares into a
// rendered D'Hondt outcome. State holds what a user has selected; Evaluate is
// the pure step that recomputes everything from that selection.
package scenario

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/eugenenazirov/dhondt-calculator/internal/hondt"
	"github.com/eugenenazirov/dhondt-calculator/internal/registry"
)

// ErrNoConstituency is returned when an outcome is requested before a constituency is selected.
var ErrNoConstituency = errors.New("no constituency selected")

// Cell is one quotient of the rendered table.
type Cell struct {
	Divisor  int  `json:"divisor"`
	Quotient int  `json:"quotient"`
	Elected  bool `json:"elected"`
}

// Row is one party line of the rendered table.
type Row struct {
	Party hondt.Party `json:"party"`
	Votes int         `json:"votes"`
	Share float64     `json:"share"`
	Seats int         `json:"seats"`
	Cells []Cell      `json:"cells"`
}

// Outcome is the full result of evaluating a scenario.
type Outcome struct {
	Constituency      registry.Constituency `json:"constituency"`
	Votes             hondt.Distribution    `json:"votes"`
	Allocation        hondt.Result          `json:"allocation"`
	Divisors          int                   `json:"divisors"`
	Rows              []Row                 `json:"rows"`
	AssignedVotes     int                   `json:"assignedVotes"`
	UnassignedPercent int                   `json:"unassignedPercent"`
	OverAllocated     bool                  `json:"overAllocated"`
	Gallagher         float64               `json:"gallagher"`
}

// DisplayDivisors returns how many quotient columns are shown for a
// constituency with the given number of seats: round(seats/2) + 1.
func DisplayDivisors(seats int) int {
	if seats <= 0 {
		return 0
	}
	return int(math.Round(float64(seats)/2)) + 1
}

// Evaluate allocates the constituency's seats among votes and renders the
// table rows for parties. Rows list only parties with votes unless showAll is set.
func Evaluate(c registry.Constituency, votes hondt.Distribution, parties []hondt.Party, showAll bool) (Outcome, error) {
	if c.Electors <= 0 {
		return Outcome{}, fmt.Errorf("%w: constituency %q has no electors", hondt.ErrInvalidInput, c.Name)
	}

	result, err := hondt.Allocate(votes, c.Seats)
	if err != nil {
		return Outcome{}, err
	}

	assigned := votes.Total()
	divisors := DisplayDivisors(c.Seats)

	outcome := Outcome{
		Constituency:      c,
		Votes:             votes.Clone(),
		Allocation:        result,
		Divisors:          divisors,
		Rows:              buildRows(c, votes, parties, result.Tally, divisors, showAll),
		AssignedVotes:     assigned,
		UnassignedPercent: 100 - int(math.Round(float64(assigned)*100/float64(c.Electors))),
		OverAllocated:     assigned > c.Electors,
		Gallagher:         gallagher(votes, result.Tally, c.Seats),
	}
	return outcome, nil
}

func buildRows(c registry.Constituency, votes hondt.Distribution, parties []hondt.Party, tally hondt.Seats, divisors int, showAll bool) []Row {
	listed := make(map[hondt.Party]struct{}, len(parties))
	order := make([]hondt.Party, 0, len(parties)+len(votes))
	for _, party := range parties {
		listed[party] = struct{}{}
		order = append(order, party)
	}
	for _, party := range votes.Parties() {
		if _, ok := listed[party]; !ok {
			order = append(order, party)
		}
	}

	rows := make([]Row, 0, len(order))
	for _, party := range order {
		partyVotes := votes.Votes(party)
		if !showAll && partyVotes <= 0 {
			continue
		}

		won := tally.Of(party)
		cells := make([]Cell, divisors)
		for i := range cells {
			divisor := i + 1
			cells[i] = Cell{
				Divisor:  divisor,
				Quotient: hondt.Divide(partyVotes, divisor),
				Elected:  divisor <= won,
			}
		}

		rows = append(rows, Row{
			Party: party,
			Votes: partyVotes,
			Share: float64(partyVotes) / float64(c.Electors),
			Seats: won,
			Cells: cells,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Votes > rows[j].Votes
	})
	return rows
}

// gallagher computes the least-squares disproportionality index in
// percentage points over the parties that received votes.
func gallagher(votes hondt.Distribution, tally hondt.Seats, seats int) float64 {
	total := votes.Total()
	if total == 0 || seats == 0 {
		return 0
	}

	squares := make(stats.Float64Data, 0, len(votes))
	for _, entry := range votes {
		voteShare := float64(entry.Votes) * 100 / float64(total)
		seatShare := float64(tally.Of(entry.Party)) * 100 / float64(seats)
		squares = append(squares, (voteShare-seatShare)*(voteShare-seatShare))
	}

	sum, err := stats.Sum(squares)
	if err != nil {
		return 0
	}
	index, err := stats.Round(math.Sqrt(sum/2), 2)
	if err != nil {
		return 0
	}
	return index
}
