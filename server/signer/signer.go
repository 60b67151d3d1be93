package signer

import (
	"encoding/base64"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cashier-go/cfsign/lib"
	"github.com/cashier-go/cfsign/server/config"
)

// URLSigner does the work of signing CloudFront URLs and cookies with a key
// belonging to a CloudFront key pair.
type URLSigner struct {
	keyPairID string
	domain    string
	sign      SignFunc
	validity  time.Duration
	now       func() time.Time
}

// NewURLSigner returns a URLSigner for the key pair keyPairID. domain is the
// CloudFront distribution domain used by SignPath and may be empty when only
// full URLs are signed.
func NewURLSigner(keyPairID, domain string, sign SignFunc) *URLSigner {
	return &URLSigner{
		keyPairID: keyPairID,
		domain:    domain,
		sign:      sign,
		now:       time.Now,
	}
}

// New creates a new URLSigner from the supplied configuration.
func New(conf *config.CloudFront) (*URLSigner, error) {
	key, err := LoadKey(conf.SigningKey)
	if err != nil {
		return nil, err
	}
	s := NewURLSigner(conf.KeyPairID, conf.Domain, RSASigner(key))
	if conf.MaxAge != "" {
		s.validity, err = time.ParseDuration(conf.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("error parsing duration '%s': %v", conf.MaxAge, err)
		}
	}
	return s, nil
}

// KeyPairID returns the CloudFront key pair id the signer signs for.
func (s *URLSigner) KeyPairID() string { return s.keyPairID }

// MaxValidity returns the longest lifetime SignRequest will grant, or zero
// when lifetimes are not capped.
func (s *URLSigner) MaxValidity() time.Duration { return s.validity }

// URL returns the https URL of path on the signer's distribution.
func (s *URLSigner) URL(path string) (string, error) {
	if s.domain == "" {
		return "", &ValidationError{Reason: "no cloudfront domain configured"}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "https://" + s.domain + path, nil
}

// SignPath signs path on the signer's distribution with a canned policy.
func (s *URLSigner) SignPath(path string, expires time.Time) (string, error) {
	u, err := s.URL(path)
	if err != nil {
		return "", err
	}
	return s.Sign(u, expires)
}

// Sign returns rawURL with the Expires, Signature and Key-Pair-Id query
// parameters of a canned policy appended.
func (s *URLSigner) Sign(rawURL string, expires time.Time) (string, error) {
	if err := checkURL(rawURL); err != nil {
		return "", err
	}
	p := NewCannedPolicy(rawURL, expires)
	sig, err := s.signPolicy(p)
	if err != nil {
		return "", err
	}
	q := "Expires=" + strconv.FormatInt(expires.Unix(), 10) +
		"&Signature=" + sig +
		"&Key-Pair-Id=" + url.QueryEscape(s.keyPairID)
	return appendQuery(rawURL, q), nil
}

// SignWithPolicy returns rawURL with the Policy, Signature and Key-Pair-Id
// query parameters of a custom policy appended.
func (s *URLSigner) SignWithPolicy(rawURL string, p *Policy) (string, error) {
	if err := checkURL(rawURL); err != nil {
		return "", err
	}
	sig, err := s.signPolicy(p)
	if err != nil {
		return "", err
	}
	b64, err := encodePolicy(p)
	if err != nil {
		return "", err
	}
	q := "Policy=" + b64 +
		"&Signature=" + sig +
		"&Key-Pair-Id=" + url.QueryEscape(s.keyPairID)
	return appendQuery(rawURL, q), nil
}

// SignedURL describes a URL issued by SignRequest.
type SignedURL struct {
	URL       string
	Resource  string
	KeyPairID string
	Expires   time.Time
	// Canned is false when the URL carries a custom policy.
	Canned bool
}

// SignRequest signs the path named in req. The expiry is capped at the
// signer's maximum validity. A custom policy is used when the request limits
// the start time or source address or the path holds a wildcard, otherwise a
// canned policy.
func (s *URLSigner) SignRequest(req *lib.SignRequest) (*SignedURL, error) {
	resource, err := s.URL(req.Path)
	if err != nil {
		return nil, err
	}
	if s.validity > 0 {
		expires := s.now().UTC().Add(s.validity)
		if req.ValidUntil.After(expires) {
			req.ValidUntil = expires
		}
	}
	p, err := NewCustomPolicy(resource, req.ValidUntil, PolicyOptions{
		NotBefore: req.ValidFrom,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, err
	}
	var signed string
	if p.IsCanned() {
		signed, err = s.Sign(resource, p.Expires())
	} else {
		signed, err = s.SignWithPolicy(resource, p)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("Issued url %s key pair: %s valid until: %s\n", resource, s.keyPairID, p.Expires())
	return &SignedURL{
		URL:       signed,
		Resource:  resource,
		KeyPairID: s.keyPairID,
		Expires:   p.Expires(),
		Canned:    p.IsCanned(),
	}, nil
}

func (s *URLSigner) signPolicy(p *Policy) (string, error) {
	if s.keyPairID == "" {
		return "", &ValidationError{Reason: "no key pair id"}
	}
	if err := p.Validate(s.now()); err != nil {
		return "", err
	}
	msg, err := p.Encode()
	if err != nil {
		return "", &ValidationError{Reason: err.Error()}
	}
	sig, err := s.sign(msg)
	if err != nil {
		return "", &SigningError{Err: err}
	}
	return encode(sig), nil
}

func checkURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("unable to parse url: %v", err)}
	}
	if u.Scheme == "" || u.Host == "" {
		return &ValidationError{Reason: fmt.Sprintf("url %q is not absolute", rawURL)}
	}
	if strings.Contains(rawURL, "#") {
		return &ValidationError{Reason: fmt.Sprintf("url %q has a fragment", rawURL)}
	}
	return nil
}

// appendQuery appends q to rawURL without re-encoding it, so the URL stays
// byte for byte the resource that was signed.
func appendQuery(rawURL, q string) string {
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + q
	}
	return rawURL + "?" + q
}

// cloudFrontEncoding replaces the characters of standard base64 that are not
// valid in a query string with the ones CloudFront expects.
var cloudFrontEncoding = strings.NewReplacer("+", "-", "=", "_", "/", "~")

func encode(b []byte) string {
	return cloudFrontEncoding.Replace(base64.StdEncoding.EncodeToString(b))
}

func encodePolicy(p *Policy) (string, error) {
	msg, err := p.Encode()
	if err != nil {
		return "", &ValidationError{Reason: err.Error()}
	}
	return encode(msg), nil
}
