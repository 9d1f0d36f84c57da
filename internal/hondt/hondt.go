package hondt

import (
	"fmt"
	"sort"
)

// Quotients builds the quotient table for votes over seats divisors.
// Every party in votes gets exactly seats quotients; seats == 0 yields an
// empty table.
func Quotients(votes Distribution, seats int) (Table, error) {
	if seats < 0 {
		return nil, fmt.Errorf("%w: seats must be non-negative, got %d", ErrInvalidInput, seats)
	}
	if err := validateDistribution(votes); err != nil {
		return nil, err
	}
	if seats == 0 {
		return Table{}, nil
	}

	table := make(Table, 0, len(votes))
	for _, entry := range votes {
		values := make([]int, seats)
		for i := range values {
			values[i] = Divide(entry.Votes, i+1)
		}
		table = append(table, PartyQuotients{Party: entry.Party, Values: values})
	}
	return table, nil
}

// Rank returns the seats highest quotients across all parties, highest first.
// Equal quotients keep their flattened order, so the party listed first in
// votes (and then the lower divisor) takes the earlier rank.
func Rank(votes Distribution, seats int) ([]Quotient, error) {
	table, err := Quotients(votes, seats)
	if err != nil {
		return nil, err
	}
	return rankTable(table, seats), nil
}

// Tally counts the seats won by each party in ranked.
func Tally(ranked []Quotient) Seats {
	seats := make(Seats)
	for _, q := range ranked {
		seats[q.Party]++
	}
	return seats
}

// Allocate runs the full pipeline and returns every intermediate artifact.
func Allocate(votes Distribution, seats int) (Result, error) {
	table, err := Quotients(votes, seats)
	if err != nil {
		return Result{}, err
	}

	ranked := rankTable(table, seats)
	total := votes.Total()

	return Result{
		Seats:      seats,
		TotalVotes: total,
		Quotients:  table,
		Ranked:     ranked,
		Tally:      Tally(ranked),
		Degenerate: seats > 0 && total == 0,
	}, nil
}

func rankTable(table Table, seats int) []Quotient {
	flat := table.Flatten()
	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].Value > flat[j].Value
	})
	if seats < len(flat) {
		flat = flat[:seats:seats]
	}
	return flat
}

// Divide returns votes/divisor rounded half up, in exact integer arithmetic.
// votes must be non-negative and divisor positive.
func Divide(votes, divisor int) int {
	q, r := votes/divisor, votes%divisor
	if r >= divisor-r {
		q++
	}
	return q
}

func validateDistribution(votes Distribution) error {
	seen := make(map[Party]struct{}, len(votes))
	for _, entry := range votes {
		if entry.Votes < 0 {
			return fmt.Errorf("%w: party %q has negative votes (%d)", ErrInvalidInput, entry.Party, entry.Votes)
		}
		if _, dup := seen[entry.Party]; dup {
			return fmt.Errorf("%w: party %q listed more than once", ErrInvalidInput, entry.Party)
		}
		seen[entry.Party] = struct{}{}
	}
	return nil
}
