package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cashier-go/cfsign/lib"
	"github.com/cashier-go/cfsign/server"
	"github.com/cashier-go/cfsign/server/config"
	"github.com/cashier-go/cfsign/server/wkfs/s3fs"
	"github.com/cashier-go/cfsign/server/wkfs/vaultfs"
)

var (
	cfg     = flag.String("config_file", "cfsignd.conf", "Path to configuration file.")
	version = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *version {
		fmt.Printf("%s\n", lib.Version)
		os.Exit(0)
	}
	conf, err := config.ReadConfig(*cfg)
	if err != nil {
		log.Fatal(err)
	}

	// Register well-known filesystems.
	s3fs.Register(conf.AWS)
	vaultfs.Register(conf.Vault)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	s, err := server.Run(conf)
	if err != nil {
		log.Fatal(err)
	}
	<-sig
	log.Print("shutting down...")

	gracePeriod, err := time.ParseDuration(conf.Server.ShutdownTimeout)
	if err != nil {
		log.Printf("Unable to parse ShutdownTimeout value %s: %v", conf.Server.ShutdownTimeout, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), gracePeriod)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
