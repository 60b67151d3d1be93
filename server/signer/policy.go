package signer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Policy is a CloudFront access policy document. A policy with a single
// statement, no IP restriction, no start time and no wildcard in the resource
// can be sent as a canned policy; anything else must travel with the URL.
type Policy struct {
	Statements []Statement `json:"Statement"`
}

// Statement grants access to one resource under a set of conditions.
type Statement struct {
	Resource  string    `json:"Resource"`
	Condition Condition `json:"Condition"`
}

// Condition restricts when and from where a resource may be fetched.
type Condition struct {
	DateLessThan    *EpochTime `json:"DateLessThan,omitempty"`
	DateGreaterThan *EpochTime `json:"DateGreaterThan,omitempty"`
	IPAddress       *IPAddress `json:"IpAddress,omitempty"`
}

// EpochTime is a time encoded as whole seconds since the Unix epoch.
type EpochTime struct {
	time.Time
}

// NewEpochTime truncates t to whole seconds.
func NewEpochTime(t time.Time) *EpochTime {
	return &EpochTime{time.Unix(t.Unix(), 0).UTC()}
}

// MarshalJSON encodes the time as {"AWS:EpochTime":<seconds>}.
func (t EpochTime) MarshalJSON() ([]byte, error) {
	return []byte(`{"AWS:EpochTime":` + strconv.FormatInt(t.Unix(), 10) + `}`), nil
}

// UnmarshalJSON decodes {"AWS:EpochTime":<seconds>}.
func (t *EpochTime) UnmarshalJSON(b []byte) error {
	var v struct {
		Epoch int64 `json:"AWS:EpochTime"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	t.Time = time.Unix(v.Epoch, 0).UTC()
	return nil
}

// IPAddress restricts access to a source CIDR.
type IPAddress struct {
	SourceIP string `json:"AWS:SourceIp"`
}

// NewCannedPolicy returns the implicit single-resource policy CloudFront
// reconstructs from the Expires parameter of a canned URL.
func NewCannedPolicy(resource string, expires time.Time) *Policy {
	return &Policy{
		Statements: []Statement{{
			Resource: resource,
			Condition: Condition{
				DateLessThan: NewEpochTime(expires),
			},
		}},
	}
}

// PolicyOptions carries the optional conditions of a custom policy.
type PolicyOptions struct {
	NotBefore time.Time
	IPAddress string
}

// NewCustomPolicy returns a single statement policy for resource. The
// resource may contain `*` wildcards. A bare IP address is widened to a
// single host CIDR.
func NewCustomPolicy(resource string, expires time.Time, opts PolicyOptions) (*Policy, error) {
	p := NewCannedPolicy(resource, expires)
	c := &p.Statements[0].Condition
	if !opts.NotBefore.IsZero() {
		c.DateGreaterThan = NewEpochTime(opts.NotBefore)
	}
	if opts.IPAddress != "" {
		cidr, err := normalizeCIDR(opts.IPAddress)
		if err != nil {
			return nil, err
		}
		c.IPAddress = &IPAddress{SourceIP: cidr}
	}
	return p, nil
}

func normalizeCIDR(s string) (string, error) {
	if strings.Contains(s, "/") {
		if _, _, err := net.ParseCIDR(s); err != nil {
			return "", &ValidationError{Reason: fmt.Sprintf("invalid source ip %q", s)}
		}
		return s, nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return "", &ValidationError{Reason: fmt.Sprintf("invalid source ip %q", s)}
	}
	if ip.To4() != nil {
		return ip.String() + "/32", nil
	}
	return ip.String() + "/128", nil
}

// Validate checks the policy is one CloudFront will accept and that it has
// not already expired at now.
func (p *Policy) Validate(now time.Time) error {
	if p == nil || len(p.Statements) == 0 {
		return &ValidationError{Reason: "policy has no statements"}
	}
	for i, s := range p.Statements {
		if s.Resource == "" {
			return &ValidationError{Reason: fmt.Sprintf("statement %d has no resource", i)}
		}
		c := s.Condition
		if c.DateLessThan == nil {
			return &ValidationError{Reason: fmt.Sprintf("statement %d has no expiry", i)}
		}
		if c.DateLessThan.Unix() <= now.Unix() {
			return &ValidationError{Reason: fmt.Sprintf("expiry %s is not in the future", c.DateLessThan.UTC().Format(time.RFC3339))}
		}
		if c.DateGreaterThan != nil && !c.DateGreaterThan.Before(c.DateLessThan.Time) {
			return &ValidationError{Reason: fmt.Sprintf("statement %d becomes valid after it expires", i)}
		}
		if c.IPAddress != nil {
			if _, _, err := net.ParseCIDR(c.IPAddress.SourceIP); err != nil {
				return &ValidationError{Reason: fmt.Sprintf("invalid source ip %q", c.IPAddress.SourceIP)}
			}
		}
	}
	return nil
}

// IsCanned reports whether the policy can be expressed as a canned policy.
func (p *Policy) IsCanned() bool {
	if len(p.Statements) != 1 {
		return false
	}
	s := p.Statements[0]
	return s.Condition.DateGreaterThan == nil &&
		s.Condition.IPAddress == nil &&
		s.Condition.DateLessThan != nil &&
		!strings.Contains(s.Resource, "*")
}

// Expires returns the earliest expiry of all statements.
func (p *Policy) Expires() time.Time {
	var t time.Time
	for _, s := range p.Statements {
		if s.Condition.DateLessThan == nil {
			continue
		}
		if t.IsZero() || s.Condition.DateLessThan.Before(t) {
			t = s.Condition.DateLessThan.Time
		}
	}
	return t
}

// Encode returns the compact JSON form of the policy, which is the message
// that gets signed. HTML characters in resources are not escaped.
func (p *Policy) Encode() ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}
