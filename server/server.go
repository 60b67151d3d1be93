package server

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go4.org/wkfs"
	"golang.org/x/crypto/acme/autocert"

	"github.com/cashier-go/cfsign/lib"
	"github.com/cashier-go/cfsign/server/config"
	"github.com/cashier-go/cfsign/server/metrics"
	"github.com/cashier-go/cfsign/server/signer"
	"github.com/cashier-go/cfsign/server/store"
	wkfscache "github.com/nsheridan/autocert-wkfs-cache"
	"github.com/sid77/drop"
)

func loadCerts(certFile, keyFile string) (tls.Certificate, error) {
	key, err := wkfs.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("error reading TLS private key: %w", err)
	}
	cert, err := wkfs.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("error reading TLS certificate: %w", err)
	}
	return tls.X509KeyPair(cert, key)
}

func listen(conf *config.Server) (net.Listener, error) {
	laddr := fmt.Sprintf("%s:%d", conf.Addr, conf.Port)
	l, err := net.Listen("tcp", laddr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen on %s: %w", laddr, err)
	}
	if !conf.UseTLS {
		return l, nil
	}
	tlsConfig := &tls.Config{}
	if conf.LetsEncryptServername != "" {
		m := autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(conf.LetsEncryptServername),
		}
		if conf.LetsEncryptCache != "" {
			m.Cache = wkfscache.Cache(conf.LetsEncryptCache)
		}
		tlsConfig = m.TLSConfig()
	} else {
		if conf.TLSCert == "" || conf.TLSKey == "" {
			l.Close()
			return nil, errors.New("TLS cert or key not specified in config")
		}
		cert, err := loadCerts(conf.TLSCert, conf.TLSKey)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("unable to create TLS listener: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tls.NewListener(l, tlsConfig), nil
}

// Server is a running cfsignd.
type Server struct {
	*http.Server
	urlstore store.URLStorer
}

func newServer(h http.Handler, urlstore store.URLStorer) *Server {
	return &Server{
		Server: &http.Server{
			Handler:      h,
			ReadTimeout:  20 * time.Second,
			WriteTimeout: 20 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		urlstore: urlstore,
	}
}

// Shutdown gracefully stops the server. The store is closed once in-flight
// requests have finished or ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	if cerr := s.urlstore.Close(); cerr != nil {
		log.Printf("error closing store: %v", cerr)
	}
	return err
}

// Run the server. The returned *Server is already serving; callers stop it
// with Shutdown.
func Run(conf *config.Config) (*Server, error) {
	l, err := listen(conf.Server)
	if err != nil {
		return nil, err
	}

	// The signing key may live on the local filesystem so it is loaded before
	// privileges are dropped.
	urlsigner, err := signer.New(conf.CloudFront)
	if err != nil {
		l.Close()
		return nil, err
	}

	if conf.Server.User != "" {
		log.Print("Dropping privileges...")
		if err := drop.DropPrivileges(conf.Server.User); err != nil {
			l.Close()
			return nil, fmt.Errorf("unable to drop privileges: %w", err)
		}
	}

	// Unprivileged section
	metrics.Register()

	urlstore, err := store.New(conf.Server.Database)
	if err != nil {
		l.Close()
		return nil, err
	}

	a := newApplication(conf.Server, urlsigner, urlstore)

	logfile := os.Stderr
	if conf.Server.HTTPLogFile != "" {
		f, err := os.OpenFile(conf.Server.HTTPLogFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0640)
		if err != nil {
			log.Printf("error opening log: %v. logging to stderr", err)
		} else {
			logfile = f
		}
	}

	s := newServer(handlers.LoggingHandler(logfile, a.router), urlstore)
	log.Printf("Starting server on %s", l.Addr())
	go func() {
		if err := s.Serve(l); err != nil && err != http.ErrServerClosed {
			log.Printf("server error: %v", err)
		}
	}()
	return s, nil
}

// mwVersion is middleware to add a X-Cfsign-Version header to the response.
func mwVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Cfsign-Version", lib.Version)
		next.ServeHTTP(w, r)
	})
}

// application contains local context - signer, store, config.
type application struct {
	urlsigner     *signer.URLSigner
	urlstore      store.URLStorer
	router        *mux.Router
	config        *config.Server
	tokens        [][]byte
	requireReason bool
}

func newApplication(conf *config.Server, urlsigner *signer.URLSigner, urlstore store.URLStorer) *application {
	a := &application{
		urlsigner:     urlsigner,
		urlstore:      urlstore,
		router:        mux.NewRouter(),
		config:        conf,
		requireReason: conf.RequireReason,
	}
	for _, t := range conf.APITokens {
		if t != "" {
			a.tokens = append(a.tokens, []byte(t))
		}
	}
	a.routes()
	a.router.Use(mwVersion)
	a.router.Use(handlers.CompressHandler)
	a.router.Use(handlers.RecoveryHandler())
	return a
}

func (a *application) routes() {
	// token required
	a.router.Methods("POST").Path("/sign").Handler(a.authed("sign", http.HandlerFunc(a.sign)))
	a.router.Methods("GET").Path("/urls.json").Handler(a.authed("urls", http.HandlerFunc(a.getURLsJSON)))
	a.router.Methods("GET").Path("/urls/{id}").Handler(a.authed("urls", http.HandlerFunc(a.getURL)))

	// no token required
	a.router.Methods("GET").Path("/healthcheck").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok")
	})
	a.router.Methods("GET").Path("/metrics").Handler(promhttp.Handler())
}

func bearerToken(r *http.Request) string {
	ah := r.Header.Get("Authorization")
	if len(ah) > 7 && strings.EqualFold(ah[0:7], "Bearer ") {
		return ah[7:]
	}
	return ""
}

func (a *application) validToken(t string) bool {
	if t == "" {
		return false
	}
	valid := false
	for _, tok := range a.tokens {
		if subtle.ConstantTimeCompare(tok, []byte(t)) == 1 {
			valid = true
		}
	}
	return valid
}

func (a *application) authed(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.validToken(bearerToken(r)) {
			metrics.M.AuthFailures.WithLabelValues(endpoint).Inc()
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, http.StatusText(http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}
