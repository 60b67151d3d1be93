package client

import (
	"errors"
	"io/fs"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the client configuration.
type Config struct {
	Path                   string `mapstructure:"path"`
	Domain                 string `mapstructure:"domain"`
	KeyFile                string `mapstructure:"key_file"`
	KeyPairID              string `mapstructure:"key_pair_id"`
	Validity               string `mapstructure:"validity"`
	IPAddress              string `mapstructure:"ip_address"`
	ValidFrom              string `mapstructure:"valid_from"`
	Server                 string `mapstructure:"server"`
	Token                  string `mapstructure:"token"`
	Message                string `mapstructure:"message"`
	ValidateTLSCertificate bool   `mapstructure:"validate_tls_certificate"`
}

var flagKeys = []string{
	"path",
	"domain",
	"key_file",
	"key_pair_id",
	"validity",
	"ip_address",
	"valid_from",
	"server",
	"token",
	"message",
}

func setDefaults(v *viper.Viper, flags *pflag.FlagSet) {
	if flags != nil {
		for _, k := range flagKeys {
			if f := flags.Lookup(k); f != nil {
				v.BindPFlag(k, f)
			}
		}
	}
	v.SetDefault("path", "/private/20240315002839.png")
	v.SetDefault("key_file", "./keys/private_key.pem")
	v.SetDefault("validity", "168h")
	v.SetDefault("validate_tls_certificate", true)
	v.SetEnvPrefix("cfsign")
	v.AutomaticEnv()
}

// ReadConfig reads the client configuration from a file into a Config struct.
// Values set on the command line override the file. A missing file is not an
// error.
func ReadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, flags)
	p, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	if p != "" {
		v.SetConfigFile(p)
		v.SetConfigType("hcl")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}
	if c.KeyFile, err = homedir.Expand(c.KeyFile); err != nil {
		return nil, err
	}
	return c, nil
}
