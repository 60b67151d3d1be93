package client

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/cashier-go/cfsign/lib"
	"github.com/cashier-go/cfsign/server/signer"
)

var (
	errNeedsReason = errors.New("reason required")
)

// Request builds the signing request described by conf.
func Request(conf *Config) (*lib.SignRequest, error) {
	validity, err := time.ParseDuration(conf.Validity)
	if err != nil {
		return nil, fmt.Errorf("invalid validity %q: %w", conf.Validity, err)
	}
	r := &lib.SignRequest{
		Path:       conf.Path,
		ValidUntil: time.Now().Add(validity),
		IPAddress:  conf.IPAddress,
		Message:    conf.Message,
		Version:    lib.Version,
	}
	if conf.ValidFrom != "" {
		r.ValidFrom, err = time.Parse(time.RFC3339, conf.ValidFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid valid_from %q: %w", conf.ValidFrom, err)
		}
	}
	return r, nil
}

func localSigner(conf *Config) (*signer.URLSigner, error) {
	key, err := signer.LoadKey(conf.KeyFile)
	if err != nil {
		return nil, err
	}
	return signer.NewURLSigner(conf.KeyPairID, conf.Domain, signer.RSASigner(key)), nil
}

// Sign returns a signed URL for conf.Path. The URL is signed with the local
// key file unless a signing server is configured.
func Sign(conf *Config) (string, error) {
	r, err := Request(conf)
	if err != nil {
		return "", err
	}
	if conf.Server != "" {
		return signRemote(r, conf)
	}
	s, err := localSigner(conf)
	if err != nil {
		return "", err
	}
	signed, err := s.SignRequest(r)
	if err != nil {
		return "", err
	}
	return signed.URL, nil
}

// SignCookies returns the signed cookies granting access to conf.Path. Cookies
// are signed with the local key file; the signing server does not issue them.
func SignCookies(conf *Config) ([]*http.Cookie, error) {
	if conf.Server != "" {
		return nil, errors.New("signed cookies are only available with a local key file, unset server")
	}
	r, err := Request(conf)
	if err != nil {
		return nil, err
	}
	s, err := localSigner(conf)
	if err != nil {
		return nil, err
	}
	resource, err := s.URL(r.Path)
	if err != nil {
		return nil, err
	}
	if r.ValidFrom.IsZero() && r.IPAddress == "" {
		return s.SignCookies(resource, r.ValidUntil)
	}
	p, err := signer.NewCustomPolicy(resource, r.ValidUntil, signer.PolicyOptions{
		NotBefore: r.ValidFrom,
		IPAddress: r.IPAddress,
	})
	if err != nil {
		return nil, err
	}
	return s.SignCookiesWithPolicy(p)
}

// send the signing request to the signing server.
func send(sr *lib.SignRequest, token, server string, validateTLSCertificate bool) (*lib.SignResponse, error) {
	s, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("unable to create sign request: %w", err)
	}
	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !validateTLSCertificate},
		},
		Timeout: 30 * time.Second,
	}
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("unable to parse server url: %w", err)
	}
	u.Path = path.Join(u.Path, "/sign")
	req, err := http.NewRequest("POST", u.String(), bytes.NewReader(s))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	signResponse := &lib.SignResponse{}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusForbidden && strings.HasPrefix(resp.Header.Get("X-Need-Reason"), "required") {
			return signResponse, errNeedsReason
		}
		return signResponse, fmt.Errorf("bad response from server: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(signResponse); err != nil {
		return nil, fmt.Errorf("unable to decode server response: %w", err)
	}
	return signResponse, nil
}

var promptForReason = func() (message string) {
	fmt.Fprint(os.Stderr, "Enter message: ")
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		message = scanner.Text()
	}
	return message
}

func signRemote(r *lib.SignRequest, conf *Config) (string, error) {
	var resp *lib.SignResponse
	var err error
	for {
		resp, err = send(r, conf.Token, conf.Server, conf.ValidateTLSCertificate)
		if err == nil {
			break
		}
		if errors.Is(err, errNeedsReason) && r.Message == "" {
			r.Message = promptForReason()
			if r.Message != "" {
				continue
			}
		}
		return "", fmt.Errorf("error sending request to server: %w", err)
	}
	if resp.Status != "ok" {
		return "", fmt.Errorf("bad response from server: %s", resp.Response)
	}
	return resp.Response, nil
}
