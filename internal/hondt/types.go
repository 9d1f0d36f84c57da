package hondt

import "math"

// Party identifies a political party.
type Party string

// PartyVotes is a single entry of a Distribution.
type PartyVotes struct {
	Party Party `json:"party"`
	Votes int   `json:"votes"`
}

// Distribution is an ordered list of vote counts by party. The order is
// significant: it decides which party wins a seat on an exact quotient tie.
type Distribution []PartyVotes

// Votes returns the votes recorded for party, or 0 when the party is absent.
func (d Distribution) Votes(party Party) int {
	for _, entry := range d {
		if entry.Party == party {
			return entry.Votes
		}
	}
	return 0
}

// Set records votes for party. An existing entry keeps its position.
func (d *Distribution) Set(party Party, votes int) {
	for i := range *d {
		if (*d)[i].Party == party {
			(*d)[i].Votes = votes
			return
		}
	}
	*d = append(*d, PartyVotes{Party: party, Votes: votes})
}

// Total sums the votes of every entry. A sum beyond math.MaxInt saturates
// at math.MaxInt, so a distribution with votes never totals zero.
func (d Distribution) Total() int {
	total := 0
	for _, entry := range d {
		if entry.Votes > math.MaxInt-total {
			return math.MaxInt
		}
		total += entry.Votes
	}
	return total
}

// Parties lists the parties in distribution order.
func (d Distribution) Parties() []Party {
	parties := make([]Party, 0, len(d))
	for _, entry := range d {
		parties = append(parties, entry.Party)
	}
	return parties
}

// Clone returns an independent copy.
func (d Distribution) Clone() Distribution {
	if d == nil {
		return nil
	}
	out := make(Distribution, len(d))
	copy(out, d)
	return out
}

// Share is the fraction of the electorate expected to vote for a party.
type Share struct {
	Party Party   `json:"party"`
	Share float64 `json:"share"`
}

// Shares is an ordered list of vote shares by party.
type Shares []Share

// Of returns the share recorded for party, or 0 when the party is absent.
func (s Shares) Of(party Party) float64 {
	for _, entry := range s {
		if entry.Party == party {
			return entry.Share
		}
	}
	return 0
}

// Set records share for party. An existing entry keeps its position.
func (s *Shares) Set(party Party, share float64) {
	for i := range *s {
		if (*s)[i].Party == party {
			(*s)[i].Share = share
			return
		}
	}
	*s = append(*s, Share{Party: party, Share: share})
}

// Total sums the shares of every entry.
func (s Shares) Total() float64 {
	total := 0.0
	for _, entry := range s {
		total += entry.Share
	}
	return total
}

// Clone returns an independent copy.
func (s Shares) Clone() Shares {
	if s == nil {
		return nil
	}
	out := make(Shares, len(s))
	copy(out, s)
	return out
}

// Quotient is a party's claim to a seat: its votes divided by Divisor,
// rounded half away from zero.
type Quotient struct {
	Party   Party `json:"party"`
	Divisor int   `json:"divisor"`
	Value   int   `json:"quotient"`
}

// PartyQuotients holds the quotients of one party ordered by ascending divisor.
type PartyQuotients struct {
	Party  Party `json:"party"`
	Values []int `json:"quotients"`
}

// Table is the full quotient table in distribution order.
type Table []PartyQuotients

// Of returns the quotients of party, or nil when the party is absent.
func (t Table) Of(party Party) []int {
	for _, row := range t {
		if row.Party == party {
			return row.Values
		}
	}
	return nil
}

// Flatten lists every quotient party by party, each party by ascending divisor.
func (t Table) Flatten() []Quotient {
	size := 0
	for _, row := range t {
		size += len(row.Values)
	}
	out := make([]Quotient, 0, size)
	for _, row := range t {
		for i, value := range row.Values {
			out = append(out, Quotient{Party: row.Party, Divisor: i + 1, Value: value})
		}
	}
	return out
}

// Seats maps parties to the seats they won. Parties without seats are absent.
type Seats map[Party]int

// Of returns the seats won by party, treating an absent party as 0.
func (s Seats) Of(party Party) int {
	return s[party]
}

// Total sums the seats of every party.
func (s Seats) Total() int {
	total := 0
	for _, seats := range s {
		total += seats
	}
	return total
}

// Result bundles every artifact of one allocation.
// Degenerate is set when seats were requested but nobody has votes; the
// allocation is then decided by tie-break order alone and carries no meaning.
type Result struct {
	Seats      int        `json:"seats"`
	TotalVotes int        `json:"totalVotes"`
	Quotients  Table      `json:"quotients"`
	Ranked     []Quotient `json:"ranked"`
	Tally      Seats      `json:"tally"`
	Degenerate bool       `json:"degenerate"`
}
