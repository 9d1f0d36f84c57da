package scenario

import (
	"fmt"

	"github.com/eugenenazirov/dhondt-calculator/internal/hondt"
	"github.com/eugenenazirov/dhondt-calculator/internal/registry"
)

// State is the selection a user builds up: a constituency, the shares per
// party and the display filter. It is not safe for concurrent use.
type State struct {
	registry registry.Registry

	constituency registry.Constituency
	selected     bool
	shares       hondt.Shares
	votes        hondt.Distribution
	showAll      bool
}

// NewState creates an empty State backed by reg.
func NewState(reg registry.Registry) *State {
	return &State{registry: reg}
}

// SelectConstituency switches to the named constituency and reseeds shares
// and votes from the registry baseline. Parties with a zero baseline share
// are left out of the vote distribution.
func (s *State) SelectConstituency(name string) error {
	c, err := s.registry.Constituency(name)
	if err != nil {
		return err
	}
	baseline, err := s.registry.Baseline()
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}

	var seeded hondt.Shares
	for _, entry := range baseline {
		if entry.Share > 0 {
			seeded = append(seeded, entry)
		}
	}
	votes, err := hondt.ScaleShares(seeded, c.Electors)
	if err != nil {
		return err
	}

	s.constituency = c
	s.selected = true
	s.shares = baseline
	s.votes = votes
	return nil
}

// SetShare changes one party's share and its scaled votes. A party that was
// not in the distribution yet is appended, even with a zero share.
func (s *State) SetShare(party hondt.Party, share float64) error {
	if !s.selected {
		return ErrNoConstituency
	}
	if !s.isParty(party) {
		return fmt.Errorf("%w: %q", registry.ErrUnknownParty, party)
	}
	votes, err := hondt.ScaleShare(party, share, s.constituency.Electors)
	if err != nil {
		return err
	}

	s.shares.Set(party, share)
	s.votes.Set(party, votes)
	return nil
}

// ClearShares drops every share and vote, keeping the selected constituency.
func (s *State) ClearShares() {
	s.shares = nil
	s.votes = nil
}

// SetShowAll controls whether rows include parties without votes.
func (s *State) SetShowAll(showAll bool) {
	s.showAll = showAll
}

// Constituency returns the selected constituency and whether one is selected.
func (s *State) Constituency() (registry.Constituency, bool) {
	return s.constituency, s.selected
}

// Shares returns a copy of the current shares.
func (s *State) Shares() hondt.Shares {
	return s.shares.Clone()
}

// Votes returns a copy of the current vote distribution.
func (s *State) Votes() hondt.Distribution {
	return s.votes.Clone()
}

// Outcome evaluates the current selection.
func (s *State) Outcome() (Outcome, error) {
	if !s.selected {
		return Outcome{}, ErrNoConstituency
	}
	return Evaluate(s.constituency, s.votes, s.registry.Parties(), s.showAll)
}

func (s *State) isParty(party hondt.Party) bool {
	for _, known := range s.registry.Parties() {
		if known == party {
			return true
		}
	}
	return false
}
