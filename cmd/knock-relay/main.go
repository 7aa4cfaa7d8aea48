package main

import (
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"flag"
	"math/big"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veylan/knock/internal/relay"
	"github.com/veylan/knock/internal/shared/log"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7031", "listen address")
	dataDir := flag.String("data", "./knock-relay-data", "data directory for the TLS identity")
	flag.Parse()

	logger := log.New("relay")

	if err := os.MkdirAll(*dataDir, 0700); err != nil {
		logger.Fatal().Err(err).Msg("failed to create data directory")
	}

	host, _, err := net.SplitHostPort(*addr)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid listen address")
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "knock-relay"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{host}
	}

	cert, err := relay.EnsureTLSIdentity(
		filepath.Join(*dataDir, "relay.crt"),
		filepath.Join(*dataDir, "relay.key"),
		template,
		&logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load TLS identity")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &relay.Server{
		Addr:        *addr,
		Certificate: cert,
		Logger:      &logger,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return server.Serve(ctx) })
	if err := group.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("relay stopped")
	}
}
