package testdata

// ClientConfig is a cfsign client configuration file.
var ClientConfig = []byte(`
	domain = "d111111abcdef8.cloudfront.net"
	key_pair_id = "ABC123"
	key_file = "~/.cfsign/private_key.pem"
	validity = "12h"
	validate_tls_certificate = false
`)
