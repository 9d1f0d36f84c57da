package hondt

import (
	"fmt"
	"math"
)

// ScaleShares converts percentage shares into whole votes for a constituency
// with the given number of registered electors: votes = round(share * electors).
// The entries keep the order of shares. Shares are not required to sum to 1;
// the remainder is simply not assigned to anyone.
func ScaleShares(shares Shares, electors int) (Distribution, error) {
	if electors <= 0 {
		return nil, fmt.Errorf("%w: electors must be positive, got %d", ErrInvalidInput, electors)
	}

	votes := make(Distribution, 0, len(shares))
	for _, entry := range shares {
		count, err := ScaleShare(entry.Party, entry.Share, electors)
		if err != nil {
			return nil, err
		}
		votes.Set(entry.Party, count)
	}
	return votes, nil
}

// ScaleShare converts one party's share into votes: round(share * electors).
// Shares have no upper bound, but the product must fit in an int.
func ScaleShare(party Party, share float64, electors int) (int, error) {
	if electors <= 0 {
		return 0, fmt.Errorf("%w: electors must be positive, got %d", ErrInvalidInput, electors)
	}
	if math.IsNaN(share) || math.IsInf(share, 0) || share < 0 {
		return 0, fmt.Errorf("%w: party %q has invalid share %v", ErrInvalidInput, party, share)
	}
	// float64(math.MaxInt) is 2^63, the first value that no longer fits.
	votes := math.Round(share * float64(electors))
	if votes >= float64(math.MaxInt) {
		return 0, fmt.Errorf("%w: party %q share %v of %d electors exceeds the vote range", ErrInvalidInput, party, share, electors)
	}
	return int(votes), nil
}
