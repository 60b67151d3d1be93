package lib

// Version of the cfsign tools, set at build time with
// -ldflags "-X github.com/cashier-go/cfsign/lib.Version=..."
var Version = "unknown"
