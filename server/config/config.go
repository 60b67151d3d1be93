package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cashier-go/cfsign/server/helpers/vault"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl"
)

// Config holds the final server configuration.
type Config struct {
	Server     *Server     `hcl:"server"`
	CloudFront *CloudFront `hcl:"cloudfront"`
	AWS        *AWS        `hcl:"aws"`
	Vault      *Vault      `hcl:"vault"`
}

// Database holds database configuration.
type Database struct {
	Type     string `hcl:"type"`
	DBName   string `hcl:"dbname"`
	Address  string `hcl:"address"`
	Username string `hcl:"username"`
	Password string `hcl:"password"`
	Filename string `hcl:"filename"`
}

// Server holds the configuration specific to the web server.
type Server struct {
	UseTLS                bool     `hcl:"use_tls"`
	TLSKey                string   `hcl:"tls_key"`
	TLSCert               string   `hcl:"tls_cert"`
	LetsEncryptServername string   `hcl:"letsencrypt_servername"`
	LetsEncryptCache      string   `hcl:"letsencrypt_cachedir"`
	Addr                  string   `hcl:"address"`
	Port                  int      `hcl:"port"`
	User                  string   `hcl:"user"`
	HTTPLogFile           string   `hcl:"http_logfile"`
	Database              Database `hcl:"database"`
	RequireReason         bool     `hcl:"require_reason"`
	ShutdownTimeout       string   `hcl:"shutdown_timeout"`
	APITokens             []string `hcl:"api_tokens"`
}

// CloudFront holds the configuration specific to signing CloudFront URLs.
type CloudFront struct {
	Domain     string `hcl:"domain"`
	KeyPairID  string `hcl:"key_pair_id"`
	SigningKey string `hcl:"signing_key"`
	MaxAge     string `hcl:"max_age"`
}

// AWS holds Amazon AWS configuration.
// AWS can also be configured using SDK methods.
type AWS struct {
	Region    string `hcl:"region"`
	AccessKey string `hcl:"access_key"`
	SecretKey string `hcl:"secret_key"`
}

// Vault holds Hashicorp Vault configuration.
type Vault struct {
	Address string `hcl:"address"`
	Token   string `hcl:"token"`
}

const (
	defaultMaxAge          = "168h"
	defaultShutdownTimeout = "10s"
)

func verifyConfig(c *Config) error {
	var err error
	if c.Server == nil {
		err = multierror.Append(err, errors.New("missing server config section"))
	}
	if c.CloudFront == nil {
		err = multierror.Append(err, errors.New("missing cloudfront config section"))
		return err
	}
	if c.CloudFront.Domain == "" {
		err = multierror.Append(err, errors.New("cloudfront domain not set"))
	}
	if c.CloudFront.KeyPairID == "" {
		err = multierror.Append(err, errors.New("cloudfront key_pair_id not set"))
	}
	if c.CloudFront.SigningKey == "" {
		err = multierror.Append(err, errors.New("cloudfront signing_key not set"))
	}
	return err
}

func setDefaults(c *Config) {
	if c.CloudFront != nil && c.CloudFront.MaxAge == "" {
		c.CloudFront.MaxAge = defaultMaxAge
	}
	if c.Server != nil {
		if c.Server.ShutdownTimeout == "" {
			c.Server.ShutdownTimeout = defaultShutdownTimeout
		}
		if c.Server.Database.Type == "" {
			c.Server.Database.Type = "mem"
		}
	}
}

func setFromEnvironment(c *Config) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err == nil && c.Server != nil {
		c.Server.Port = port
	}
	if os.Getenv("CFSIGN_KEY_PAIR_ID") != "" && c.CloudFront != nil {
		c.CloudFront.KeyPairID = os.Getenv("CFSIGN_KEY_PAIR_ID")
	}
	if os.Getenv("CFSIGN_API_TOKENS") != "" && c.Server != nil {
		c.Server.APITokens = strings.Split(os.Getenv("CFSIGN_API_TOKENS"), ",")
	}
}

func setFromVault(c *Config) error {
	if c.Vault == nil || c.Vault.Token == "" || c.Vault.Address == "" {
		return nil
	}
	v, err := vault.NewClient(c.Vault.Address, c.Vault.Token)
	if err != nil {
		return fmt.Errorf("vault error: %w", err)
	}
	var errs *multierror.Error
	get := func(value string) string {
		if strings.HasPrefix(value, "/vault/") {
			s, err := v.Read(value)
			if err != nil {
				errs = multierror.Append(errs, err)
			}
			return s
		}
		return value
	}
	if c.Server != nil {
		c.Server.Database.Password = get(c.Server.Database.Password)
		for i, t := range c.Server.APITokens {
			c.Server.APITokens[i] = get(t)
		}
	}
	if c.CloudFront != nil {
		c.CloudFront.KeyPairID = get(c.CloudFront.KeyPairID)
	}
	if c.AWS != nil {
		c.AWS.AccessKey = get(c.AWS.AccessKey)
		c.AWS.SecretKey = get(c.AWS.SecretKey)
	}
	return errs.ErrorOrNil()
}

// ReadConfig parses a hcl configuration file into a Config struct.
func ReadConfig(f string) (*Config, error) {
	bs, err := os.ReadFile(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read config from file %s: %w", f, err)
	}
	return ParseConfig(bs)
}

// ParseConfig parses hcl configuration bytes into a Config struct.
func ParseConfig(bs []byte) (*Config, error) {
	config := &Config{}
	if err := hcl.Unmarshal(bs, config); err != nil {
		return nil, fmt.Errorf("error parsing config: %v", err)
	}
	if err := setFromVault(config); err != nil {
		return nil, err
	}
	setFromEnvironment(config)
	if err := verifyConfig(config); err != nil {
		return nil, fmt.Errorf("unable to verify config: %w", err)
	}
	setDefaults(config)
	return config, nil
}
