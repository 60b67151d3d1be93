package signer

import (
	"net/http"
	"strconv"
	"time"
)

// Cookie names CloudFront reads signed-cookie credentials from.
const (
	CookieExpires   = "CloudFront-Expires"
	CookiePolicy    = "CloudFront-Policy"
	CookieSignature = "CloudFront-Signature"
	CookieKeyPairID = "CloudFront-Key-Pair-Id"
)

// SignCookies returns the canned policy signed cookies granting access to
// resource until expires.
func (s *URLSigner) SignCookies(resource string, expires time.Time) ([]*http.Cookie, error) {
	if err := checkURL(resource); err != nil {
		return nil, err
	}
	sig, err := s.signPolicy(NewCannedPolicy(resource, expires))
	if err != nil {
		return nil, err
	}
	return []*http.Cookie{
		newCookie(CookieExpires, strconv.FormatInt(expires.Unix(), 10)),
		newCookie(CookieSignature, sig),
		newCookie(CookieKeyPairID, s.keyPairID),
	}, nil
}

// SignCookiesWithPolicy returns the custom policy signed cookies for p.
func (s *URLSigner) SignCookiesWithPolicy(p *Policy) ([]*http.Cookie, error) {
	sig, err := s.signPolicy(p)
	if err != nil {
		return nil, err
	}
	b64, err := encodePolicy(p)
	if err != nil {
		return nil, err
	}
	return []*http.Cookie{
		newCookie(CookiePolicy, b64),
		newCookie(CookieSignature, sig),
		newCookie(CookieKeyPairID, s.keyPairID),
	}, nil
}

func newCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
	}
}
