package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cashier-go/cfsign/server/config"
	"github.com/cashier-go/cfsign/server/signer"
)

// New returns a new configured database.
func New(c config.Database) (URLStorer, error) {
	switch c.Type {
	case "mysql", "sqlite":
		return newSQLStore(c)
	case "mem":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unable to create store with driver %s", c.Type)
}

// ErrNotFound is returned by Get for an unknown record id.
var ErrNotFound = errors.New("url record not found")

// URLStorer records issued URLs in a persistent store for audit purposes.
// Signatures are never stored.
type URLStorer interface {
	Get(id string) (*URLRecord, error)
	SetRecord(record *URLRecord) error
	List(includeExpired bool) ([]*URLRecord, error)
	Close() error
}

// Policy types recorded in URLRecord.Policy.
const (
	PolicyCanned = "canned"
	PolicyCustom = "custom"
)

// A URLRecord is a representation of an issued signed URL used by a URLStorer.
type URLRecord struct {
	ID        string    `json:"id" db:"id"`
	Path      string    `json:"path" db:"path"`
	Resource  string    `json:"resource" db:"resource"`
	KeyPairID string    `json:"key_pair_id" db:"key_pair_id"`
	Policy    string    `json:"policy" db:"policy"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Expires   time.Time `json:"expires" db:"expires_at"`
	Message   string    `json:"message" db:"message"`
}

// MarshalJSON implements the json.Marshaler interface for the CreatedAt and
// Expires fields.
// The resulting string looks like "2017-04-11 10:00:00 +0000"
func (r *URLRecord) MarshalJSON() ([]byte, error) {
	type Alias URLRecord
	f := "2006-01-02 15:04:05 -0700"
	return json.Marshal(&struct {
		*Alias
		CreatedAt string `json:"created_at"`
		Expires   string `json:"expires"`
	}{
		Alias:     (*Alias)(r),
		CreatedAt: r.CreatedAt.Format(f),
		Expires:   r.Expires.Format(f),
	})
}

// MakeRecord creates a new record for a URL issued for path.
func MakeRecord(path string, s *signer.SignedURL) *URLRecord {
	policy := PolicyCustom
	if s.Canned {
		policy = PolicyCanned
	}
	return &URLRecord{
		ID:        uuid.NewString(),
		Path:      path,
		Resource:  s.Resource,
		KeyPairID: s.KeyPairID,
		Policy:    policy,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Expires:   s.Expires.UTC(),
	}
}
