package hondt

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the distribution as an object whose keys follow the
// distribution order.
func (d Distribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, entry.Party, entry.Votes); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts either an object ({"A": 100}) or an array of
// {"party": "A", "votes": 100} entries. Entry order is preserved and
// duplicates are kept so that validation can reject them.
func (d *Distribution) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = nil
		return nil
	}

	var out Distribution
	if len(data) > 0 && data[0] == '[' {
		var entries []PartyVotes
		if err := json.Unmarshal(data, &entries); err != nil {
			return err
		}
		*d = Distribution(entries)
		return nil
	}

	err := decodeObject(data, func(party Party, raw json.RawMessage) error {
		var votes int
		if err := json.Unmarshal(raw, &votes); err != nil {
			return fmt.Errorf("votes for %q: %w", party, err)
		}
		out = append(out, PartyVotes{Party: party, Votes: votes})
		return nil
	})
	if err != nil {
		return err
	}
	*d = out
	return nil
}

// MarshalJSON encodes the shares as an object whose keys follow the share order.
func (s Shares) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, entry.Party, entry.Share); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts either an object ({"A": 0.3}) or an array of
// {"party": "A", "share": 0.3} entries. Object key order is preserved.
func (s *Shares) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	var out Shares
	if len(data) > 0 && data[0] == '[' {
		var entries []Share
		if err := json.Unmarshal(data, &entries); err != nil {
			return err
		}
		*s = Shares(entries)
		return nil
	}

	err := decodeObject(data, func(party Party, raw json.RawMessage) error {
		var share float64
		if err := json.Unmarshal(raw, &share); err != nil {
			return fmt.Errorf("share for %q: %w", party, err)
		}
		out = append(out, Share{Party: party, Share: share})
		return nil
	})
	if err != nil {
		return err
	}
	*s = out
	return nil
}

func writeMember(buf *bytes.Buffer, party Party, value any) error {
	key, err := json.Marshal(string(party))
	if err != nil {
		return err
	}
	val, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}

func decodeObject(data []byte, member func(Party, json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object or array, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := member(Party(key), raw); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
