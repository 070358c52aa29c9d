package feed

import (
	"encoding/json"
	"errors"

	sgo "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Cursor marks, per registry address, the oldest signature already
// considered. Pagination resumes strictly before these marks. Cursors
// are caller-local values; concurrent feed loads hold their own copy.
type Cursor map[string]sgo.Signature

func (c Cursor) Clone() Cursor {
	out := make(Cursor, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Token renders the cursor as an opaque string for HTTP round-trips.
func (c Cursor) Token() (string, error) {
	if len(c) == 0 {
		return "", nil
	}
	m := make(map[string]string, len(c))
	for k, v := range c {
		m[k] = v.String()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return base58.Encode(data), nil
}

// ParseToken inverts Token. An empty token is a valid empty cursor.
func ParseToken(token string) (Cursor, error) {
	if len(token) == 0 {
		return Cursor{}, nil
	}
	data, err := base58.Decode(token)
	if err != nil {
		return nil, errors.New("bad cursor token")
	}
	var m map[string]string
	if err = json.Unmarshal(data, &m); err != nil {
		return nil, errors.New("bad cursor token")
	}
	out := make(Cursor, len(m))
	for k, v := range m {
		sig, err := sgo.SignatureFromBase58(v)
		if err != nil {
			return nil, errors.New("bad cursor token")
		}
		out[k] = sig
	}
	return out, nil
}
