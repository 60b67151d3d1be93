package signer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cashier-go/cfsign/lib"
	"github.com/cashier-go/cfsign/testdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDomain    = "d111111abcdef8.cloudfront.net"
	testKeyPairID = "ABC123"
)

var (
	key, _  = ParseKey(testdata.Priv)
	now     = time.Date(2024, 3, 15, 0, 28, 39, 0, time.UTC)
	expires = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newTestSigner() *URLSigner {
	s := NewURLSigner(testKeyPairID, testDomain, RSASigner(key))
	s.now = func() time.Time { return now }
	return s
}

func decode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := base64.StdEncoding.DecodeString(strings.NewReplacer("-", "+", "_", "=", "~", "/").Replace(s))
	require.NoError(t, err)
	return b
}

func verify(t *testing.T, msg []byte, sig string) {
	t.Helper()
	digest := sha1.Sum(msg)
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA1, digest[:], decode(t, sig)))
}

func TestSign(t *testing.T) {
	ret, err := newTestSigner().SignPath("/a.png", expires)
	require.NoError(t, err)

	u, err := url.Parse(ret)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, testDomain, u.Host)
	assert.Equal(t, "/a.png", u.Path)

	q := u.Query()
	for _, p := range []string{"Expires", "Signature", "Key-Pair-Id"} {
		assert.Len(t, q[p], 1, p)
	}
	assert.Equal(t, "ABC123", q.Get("Key-Pair-Id"))
	assert.Equal(t, "1893456000", q.Get("Expires"))
	assert.Equal(t, testdata.CannedSignature, q.Get("Signature"))

	want := "https://d111111abcdef8.cloudfront.net/a.png?Expires=1893456000&Signature=" +
		testdata.CannedSignature + "&Key-Pair-Id=ABC123"
	assert.Equal(t, want, ret)
}

func TestSignVerifies(t *testing.T) {
	ret, err := newTestSigner().Sign("https://"+testDomain+"/private/20240315002839.png", expires)
	require.NoError(t, err)
	u, _ := url.Parse(ret)
	msg, err := NewCannedPolicy("https://"+testDomain+"/private/20240315002839.png", expires).Encode()
	require.NoError(t, err)
	verify(t, msg, u.Query().Get("Signature"))
}

func TestSignDeterministic(t *testing.T) {
	s := newTestSigner()
	a, err := s.SignPath("/a.png", expires)
	require.NoError(t, err)
	b, err := s.SignPath("/a.png", expires)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSignPKCS8(t *testing.T) {
	k8, err := ParseKey(testdata.PrivPKCS8)
	require.NoError(t, err)
	s := NewURLSigner(testKeyPairID, testDomain, RSASigner(k8))
	s.now = func() time.Time { return now }
	ret, err := s.SignPath("/a.png", expires)
	require.NoError(t, err)
	assert.Contains(t, ret, "&Signature="+testdata.CannedSignature+"&")
}

func TestSignExpiresTruncated(t *testing.T) {
	ret, err := newTestSigner().SignPath("/a.png", expires.Add(999*time.Millisecond))
	require.NoError(t, err)
	assert.Contains(t, ret, "Expires=1893456000&")
}

func TestSignExistingQuery(t *testing.T) {
	raw := "https://" + testDomain + "/a.png?size=large"
	ret, err := newTestSigner().Sign(raw, expires)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ret, raw+"&Expires=1893456000&Signature="), ret)

	u, _ := url.Parse(ret)
	msg, _ := NewCannedPolicy(raw, expires).Encode()
	verify(t, msg, u.Query().Get("Signature"))
}

func TestSignValidation(t *testing.T) {
	s := newTestSigner()
	cases := map[string]func() (string, error){
		"expired":     func() (string, error) { return s.SignPath("/a.png", now.Add(-time.Hour)) },
		"now":         func() (string, error) { return s.SignPath("/a.png", now) },
		"same second": func() (string, error) { return s.SignPath("/a.png", now.Add(500*time.Millisecond)) },
		"relative":    func() (string, error) { return s.Sign("/a.png", expires) },
		"fragment":    func() (string, error) { return s.Sign("https://"+testDomain+"/a.png#top", expires) },
		"no key pair": func() (string, error) {
			n := NewURLSigner("", testDomain, RSASigner(key))
			return n.SignPath("/a.png", expires)
		},
		"no domain": func() (string, error) {
			n := NewURLSigner(testKeyPairID, "", RSASigner(key))
			return n.SignPath("/a.png", expires)
		},
	}
	for name, fn := range cases {
		ret, err := fn()
		assert.Empty(t, ret, name)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), "%s: got %v", name, err)
	}
}

func TestSigningError(t *testing.T) {
	backendErr := errors.New("padding not supported")
	s := NewURLSigner(testKeyPairID, testDomain, func([]byte) ([]byte, error) {
		return nil, backendErr
	})
	ret, err := s.SignPath("/a.png", expires)
	assert.Empty(t, ret)
	var serr *SigningError
	require.True(t, errors.As(err, &serr))
	assert.True(t, errors.Is(err, backendErr))
}

func TestCryptoSignerRejectsECDSA(t *testing.T) {
	ec, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	s := NewURLSigner(testKeyPairID, testDomain, CryptoSigner(ec))
	_, err = s.SignPath("/a.png", expires)
	var serr *SigningError
	assert.True(t, errors.As(err, &serr))
}

func TestSignWithPolicy(t *testing.T) {
	s := newTestSigner()
	resource := "https://" + testDomain + "/private/*"
	p, err := NewCustomPolicy(resource, expires, PolicyOptions{
		NotBefore: now,
		IPAddress: "192.0.2.10",
	})
	require.NoError(t, err)
	assert.False(t, p.IsCanned())

	ret, err := s.SignWithPolicy("https://"+testDomain+"/private/a.png", p)
	require.NoError(t, err)
	u, err := url.Parse(ret)
	require.NoError(t, err)
	q := u.Query()
	assert.Empty(t, q.Get("Expires"))
	assert.Equal(t, testKeyPairID, q.Get("Key-Pair-Id"))

	msg := decode(t, q.Get("Policy"))
	verify(t, msg, q.Get("Signature"))

	got := &Policy{}
	require.NoError(t, json.Unmarshal(msg, got))
	require.Len(t, got.Statements, 1)
	st := got.Statements[0]
	assert.Equal(t, resource, st.Resource)
	assert.Equal(t, expires.Unix(), st.Condition.DateLessThan.Unix())
	assert.Equal(t, now.Unix(), st.Condition.DateGreaterThan.Unix())
	assert.Equal(t, "192.0.2.10/32", st.Condition.IPAddress.SourceIP)
}

func TestCustomPolicyValidation(t *testing.T) {
	_, err := NewCustomPolicy("https://"+testDomain+"/a.png", expires, PolicyOptions{IPAddress: "not-an-ip"})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	p, err := NewCustomPolicy("https://"+testDomain+"/a.png", expires, PolicyOptions{NotBefore: expires.Add(time.Hour)})
	require.NoError(t, err)
	assert.Error(t, p.Validate(now))

	p, err = NewCustomPolicy("https://"+testDomain+"/a.png", expires, PolicyOptions{IPAddress: "2001:db8::/32"})
	require.NoError(t, err)
	assert.NoError(t, p.Validate(now))

	assert.Error(t, (&Policy{}).Validate(now))
}

func TestCannedPolicyEncoding(t *testing.T) {
	p := NewCannedPolicy("https://"+testDomain+"/a.png?x=1&y=<2>", expires)
	assert.True(t, p.IsCanned())
	msg, err := p.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"Statement":[{"Resource":"https://d111111abcdef8.cloudfront.net/a.png?x=1&y=<2>","Condition":{"DateLessThan":{"AWS:EpochTime":1893456000}}}]}`, string(msg))
	assert.Equal(t, expires, p.Expires())
}

func TestSignCookies(t *testing.T) {
	s := newTestSigner()
	cookies, err := s.SignCookies("https://"+testDomain+"/a.png", expires)
	require.NoError(t, err)
	got := map[string]string{}
	for _, c := range cookies {
		got[c.Name] = c.Value
		assert.True(t, c.Secure)
	}
	assert.Equal(t, map[string]string{
		CookieExpires:   "1893456000",
		CookieSignature: testdata.CannedSignature,
		CookieKeyPairID: testKeyPairID,
	}, got)

	p, _ := NewCustomPolicy("https://"+testDomain+"/*", expires, PolicyOptions{})
	cookies, err = s.SignCookiesWithPolicy(p)
	require.NoError(t, err)
	require.Len(t, cookies, 3)
	assert.Equal(t, CookiePolicy, cookies[0].Name)
	verify(t, decode(t, cookies[0].Value), cookies[1].Value)
}

func TestSignRequest(t *testing.T) {
	s := newTestSigner()
	s.validity = 24 * time.Hour
	r := &lib.SignRequest{
		Path:       "private/a.png",
		ValidUntil: now.Add(30 * 24 * time.Hour),
	}
	ret, err := s.SignRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "https://"+testDomain+"/private/a.png", ret.Resource)
	assert.Equal(t, now.Add(24*time.Hour), ret.Expires)
	assert.Equal(t, testKeyPairID, ret.KeyPairID)
	assert.True(t, ret.Canned)
	u, _ := url.Parse(ret.URL)
	assert.NotEmpty(t, u.Query().Get("Expires"))

	r = &lib.SignRequest{
		Path:       "/private/a.png",
		ValidUntil: now.Add(time.Hour),
		IPAddress:  "198.51.100.0/24",
	}
	ret, err = s.SignRequest(r)
	require.NoError(t, err)
	assert.False(t, ret.Canned)
	u, _ = url.Parse(ret.URL)
	assert.Empty(t, u.Query().Get("Expires"))
	assert.NotEmpty(t, u.Query().Get("Policy"))
}

func TestSignRequestWildcard(t *testing.T) {
	r := &lib.SignRequest{
		Path:       "/private/*",
		ValidUntil: expires.Add(500 * time.Millisecond),
	}
	ret, err := newTestSigner().SignRequest(r)
	require.NoError(t, err)
	assert.False(t, ret.Canned)
	assert.Equal(t, expires, ret.Expires)

	u, err := url.Parse(ret.URL)
	require.NoError(t, err)
	got := &Policy{}
	require.NoError(t, json.Unmarshal(decode(t, u.Query().Get("Policy")), got))
	assert.Equal(t, "https://"+testDomain+"/private/*", got.Statements[0].Resource)
}
