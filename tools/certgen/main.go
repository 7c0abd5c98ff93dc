// Package main generates a development certificate authority and an ocsd
// server certificate, writing them under the output directory.
//
// Usage:
//
//	certgen [-dir certs] [-hosts localhost,127.0.0.1]
//
// Point ocsd's tls.cert_file/tls.key_file at server.crt/server.key and the
// client's ca_file at ca.crt.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Azelphur/ownCloud-share-tools/internal/certgen"
)

const (
	caValidity     = 10 * 365 * 24 * time.Hour
	serverValidity = 365 * 24 * time.Hour
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma-separated DNS names and IPs for the server certificate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return err
	}

	ca, caCert, caKey, err := certgen.GenerateCA("ocsd development CA", caValidity)
	if err != nil {
		return err
	}
	if err := writePair(*dir, "ca", caCert, caKey); err != nil {
		return err
	}

	serverCert, serverKey, err := ca.GenerateServerCertificate(splitHosts(*hosts), serverValidity)
	if err != nil {
		return err
	}
	if err := writePair(*dir, "server", serverCert, serverKey); err != nil {
		return err
	}

	fmt.Printf("certificates generated into %s\n", *dir)
	return nil
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// writePair writes <name>.crt world-readable and <name>.key owner-only.
func writePair(dir, name string, certPEM, keyPEM []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name+".crt"), certPEM, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name+".key"), keyPEM, 0o600)
}
