package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/pflag"

	"github.com/cashier-go/cfsign/client"
	"github.com/cashier-go/cfsign/lib"
)

var (
	cfg     = pflag.String("config", "~/.cfsign.conf", "Path to config file")
	_       = pflag.String("path", "/private/20240315002839.png", "Path of the object on the distribution")
	_       = pflag.String("domain", "", "CloudFront distribution domain")
	_       = pflag.String("key_file", "./keys/private_key.pem", "PEM encoded RSA private key")
	_       = pflag.String("key_pair_id", "", "CloudFront key pair id")
	_       = pflag.Duration("validity", 7*24*time.Hour, "URL lifetime. May be shortened by the signing server")
	_       = pflag.String("ip_address", "", "Restrict the URL to a source IP or CIDR (custom policy)")
	_       = pflag.String("valid_from", "", "RFC3339 time before which the URL is not valid (custom policy)")
	_       = pflag.String("server", "", "Signing server. Sign locally when empty")
	_       = pflag.String("token", "", "API token for the signing server")
	_       = pflag.String("message", "", "Reason for the request, recorded by the signing server")
	cookies = pflag.Bool("cookies", false, "Print signed cookies instead of a URL. Requires a local key file, not --server")
	open    = pflag.Bool("open", false, "Open the signed URL in a web browser")
	version = pflag.Bool("version", false, "Print version and exit")
)

func main() {
	pflag.Parse()
	if *version {
		fmt.Printf("%s\n", lib.Version)
		os.Exit(0)
	}
	log.SetPrefix("cfsign: ")
	log.SetFlags(0)

	c, err := client.ReadConfig(*cfg, pflag.CommandLine)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if *cookies {
		cs, err := client.SignCookies(c)
		if err != nil {
			log.Fatalln(err)
		}
		for _, ck := range cs {
			fmt.Printf("Set-Cookie: %s\n", ck)
		}
		return
	}

	signed, err := client.Sign(c)
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Printf("Signed URL: %s\n", signed)
	if *open {
		browser.Stdout = os.Stderr
		if err := browser.OpenURL(signed); err != nil {
			log.Printf("Error launching web browser: %v", err)
		}
	}
}
