package registry

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/dhondt-calculator/internal/hondt"
)

var (
	// ErrUnknownConstituency is returned when a constituency name is not registered.
	ErrUnknownConstituency = errors.New("unknown constituency")
	// ErrUnknownParty is returned when a party identifier is not registered.
	ErrUnknownParty = errors.New("unknown party")
	// ErrInvalidBaseline indicates baseline shares outside [0, 1] or listed twice.
	ErrInvalidBaseline = errors.New("baseline shares must be between 0 and 1")
	// ErrInvalidReferenceData indicates a malformed reference data document.
	ErrInvalidReferenceData = errors.New("invalid reference data")
)

//go:embed data/reference.yaml
var defaultReferenceData []byte

// Constituency is an electoral district with a fixed number of seats.
type Constituency struct {
	Name     string `json:"name" yaml:"name"`
	Electors int    `json:"electors" yaml:"electors"`
	Seats    int    `json:"seats" yaml:"seats"`
}

// Registry provides the reference data consumed by the allocation pipeline.
type Registry interface {
	Parties() []hondt.Party
	Constituencies() []Constituency
	Constituency(name string) (Constituency, error)
	Baseline() (hondt.Shares, error)
	SetBaseline(shares hondt.Shares) error
}

// MemoryRegistry keeps reference data in memory. Parties and constituencies
// are fixed after loading; baseline shares can be replaced at runtime.
type MemoryRegistry struct {
	parties        []hondt.Party
	known          map[hondt.Party]struct{}
	constituencies []Constituency

	mu       sync.RWMutex
	baseline hondt.Shares
}

type document struct {
	Parties        []hondt.Party  `yaml:"parties"`
	Constituencies []Constituency `yaml:"constituencies"`
	Baseline       yaml.Node      `yaml:"baseline"`
}

// NewMemoryRegistry returns a registry initialised from the embedded reference data.
func NewMemoryRegistry() *MemoryRegistry {
	reg, err := Load(bytes.NewReader(defaultReferenceData))
	if err != nil {
		panic(fmt.Sprintf("embedded reference data: %v", err))
	}
	return reg
}

// DefaultBaseline returns the baseline shares shipped with the embedded reference data.
func DefaultBaseline() hondt.Shares {
	shares, _ := NewMemoryRegistry().Baseline()
	return shares
}

// LoadFile reads a reference data document from path.
func LoadFile(path string) (*MemoryRegistry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference data: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses and validates a YAML reference data document.
func Load(r io.Reader) (*MemoryRegistry, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: parse YAML: %v", ErrInvalidReferenceData, err)
	}

	reg := &MemoryRegistry{
		known: make(map[hondt.Party]struct{}, len(doc.Parties)),
	}

	if len(doc.Parties) == 0 {
		return nil, fmt.Errorf("%w: no parties listed", ErrInvalidReferenceData)
	}
	for _, party := range doc.Parties {
		if strings.TrimSpace(string(party)) == "" {
			return nil, fmt.Errorf("%w: empty party identifier", ErrInvalidReferenceData)
		}
		if _, dup := reg.known[party]; dup {
			return nil, fmt.Errorf("%w: party %q listed twice", ErrInvalidReferenceData, party)
		}
		reg.known[party] = struct{}{}
		reg.parties = append(reg.parties, party)
	}

	if len(doc.Constituencies) == 0 {
		return nil, fmt.Errorf("%w: no constituencies listed", ErrInvalidReferenceData)
	}
	names := make(map[string]struct{}, len(doc.Constituencies))
	for _, c := range doc.Constituencies {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if key == "" {
			return nil, fmt.Errorf("%w: constituency without a name", ErrInvalidReferenceData)
		}
		if _, dup := names[key]; dup {
			return nil, fmt.Errorf("%w: constituency %q listed twice", ErrInvalidReferenceData, c.Name)
		}
		if c.Electors <= 0 || c.Seats <= 0 {
			return nil, fmt.Errorf("%w: constituency %q needs positive electors and seats", ErrInvalidReferenceData, c.Name)
		}
		names[key] = struct{}{}
		reg.constituencies = append(reg.constituencies, c)
	}

	shares, err := decodeShares(&doc.Baseline)
	if err != nil {
		return nil, fmt.Errorf("%w: baseline: %v", ErrInvalidReferenceData, err)
	}
	if err := reg.SetBaseline(shares); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReferenceData, err)
	}

	return reg, nil
}

// Parties returns a copy of the party registry in registry order.
func (r *MemoryRegistry) Parties() []hondt.Party {
	out := make([]hondt.Party, len(r.parties))
	copy(out, r.parties)
	return out
}

// Constituencies returns a copy of the constituency registry.
func (r *MemoryRegistry) Constituencies() []Constituency {
	out := make([]Constituency, len(r.constituencies))
	copy(out, r.constituencies)
	return out
}

// Constituency looks a constituency up by name, ignoring case.
func (r *MemoryRegistry) Constituency(name string) (Constituency, error) {
	name = strings.TrimSpace(name)
	for _, c := range r.constituencies {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return Constituency{}, fmt.Errorf("%w: %q", ErrUnknownConstituency, name)
}

// Baseline returns the current baseline shares, one entry per registered
// party in registry order.
func (r *MemoryRegistry) Baseline() (hondt.Shares, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.baseline.Clone(), nil
}

// SetBaseline validates and stores shares. Parties missing from shares get 0.
func (r *MemoryRegistry) SetBaseline(shares hondt.Shares) error {
	normalized, err := r.normalizeShares(shares)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.baseline = normalized
	r.mu.Unlock()

	return nil
}

// IsParty reports whether party is registered.
func (r *MemoryRegistry) IsParty(party hondt.Party) bool {
	_, ok := r.known[party]
	return ok
}

func (r *MemoryRegistry) normalizeShares(shares hondt.Shares) (hondt.Shares, error) {
	byParty := make(map[hondt.Party]float64, len(shares))
	for _, entry := range shares {
		if !r.IsParty(entry.Party) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParty, entry.Party)
		}
		if _, dup := byParty[entry.Party]; dup {
			return nil, fmt.Errorf("%w: party %q listed twice", ErrInvalidBaseline, entry.Party)
		}
		if math.IsNaN(entry.Share) || entry.Share < 0 || entry.Share > 1 {
			return nil, fmt.Errorf("%w: party %q has share %v", ErrInvalidBaseline, entry.Party, entry.Share)
		}
		byParty[entry.Party] = entry.Share
	}

	out := make(hondt.Shares, 0, len(r.parties))
	for _, party := range r.parties {
		out = append(out, hondt.Share{Party: party, Share: byParty[party]})
	}
	return out, nil
}

func decodeShares(node *yaml.Node) (hondt.Shares, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping of party to share at line %d", node.Line)
	}

	var shares hondt.Shares
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var share float64
		if err := value.Decode(&share); err != nil {
			return nil, fmt.Errorf("share for %q: %w", key.Value, err)
		}
		shares = append(shares, hondt.Share{Party: hondt.Party(key.Value), Share: share})
	}
	return shares, nil
}
