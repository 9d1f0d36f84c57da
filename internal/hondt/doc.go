// Package hondt implements the D'Hondt highest-averages seat allocation.
//
// The pipeline has three pure stages: Quotients builds votes/1..votes/seats
// for every party, Rank flattens those quotients and keeps the top seats
// entries, and Tally counts the seats each party won. Allocate runs all three.
//
// Ties between equal quotients are resolved by position: the distribution is
// an ordered list, quotients are flattened party by party with ascending
// divisors, and the ranking is a stable descending sort. The earlier entry
// therefore takes the earlier seat. Callers that need a different policy must
// reorder the distribution before calling.
package hondt
