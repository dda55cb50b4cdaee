// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Acesso Contributors

// Package tls generates and loads the certificates used by the acesso gRPC
// listener and its clients.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// File names inside a certs directory.
const (
	CAFile = "root-ca.crt"
	caKey  = "root-ca.key"
)

// CA holds a certificate authority certificate and private key.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// ServerCert holds a server certificate and private key.
type ServerCert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	Name        string
}

func serialNumber() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, oops.Code("CERT_GENERATE_FAILED").With("operation", "serial").Wrap(err)
	}
	return serial, nil
}

// GenerateCA creates a self-signed root CA valid for ten years.
func GenerateCA(commonName string) (*CA, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Code("CERT_GENERATE_FAILED").With("operation", "ca key").Wrap(err)
	}
	serial, err := serialNumber()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Acesso"},
			CommonName:   commonName,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, oops.Code("CERT_GENERATE_FAILED").With("operation", "ca certificate").Wrap(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Code("CERT_GENERATE_FAILED").With("operation", "parse ca certificate").Wrap(err)
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// GenerateServerCert creates a one-year server certificate signed by ca.
// Each host is added as an IP SAN when it parses as an IP, otherwise as a
// DNS SAN. name is the base of the file names written by SaveCertificates.
func GenerateServerCert(ca *CA, name string, hosts []string) (*ServerCert, error) {
	if len(hosts) == 0 {
		return nil, oops.Code("CERT_GENERATE_FAILED").Errorf("at least one host is required")
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Code("CERT_GENERATE_FAILED").With("operation", "server key").Wrap(err)
	}
	serial, err := serialNumber()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Acesso"},
			CommonName:   hosts[0],
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().AddDate(1, 0, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, ca.Certificate, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		return nil, oops.Code("CERT_GENERATE_FAILED").With("operation", "server certificate").Wrap(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Code("CERT_GENERATE_FAILED").With("operation", "parse server certificate").Wrap(err)
	}
	return &ServerCert{Certificate: cert, PrivateKey: key, Name: name}, nil
}

// SaveCertificates writes the CA as root-ca.crt/root-ca.key and, when
// serverCert is non-nil, the server pair as {name}.crt/{name}.key.
func SaveCertificates(certsDir string, ca *CA, serverCert *ServerCert) error {
	if err := os.MkdirAll(certsDir, 0o700); err != nil {
		return oops.Code("CERT_SAVE_FAILED").With("dir", certsDir).Wrap(err)
	}

	if err := saveCert(filepath.Join(certsDir, CAFile), ca.Certificate); err != nil {
		return err
	}
	if err := saveKey(filepath.Join(certsDir, caKey), ca.PrivateKey); err != nil {
		return err
	}

	if serverCert != nil {
		if err := saveCert(filepath.Join(certsDir, serverCert.Name+".crt"), serverCert.Certificate); err != nil {
			return err
		}
		if err := saveKey(filepath.Join(certsDir, serverCert.Name+".key"), serverCert.PrivateKey); err != nil {
			return err
		}
	}
	return nil
}

// LoadCA loads an existing CA from the certs directory.
func LoadCA(certsDir string) (*CA, error) {
	certPEM, err := os.ReadFile(filepath.Clean(filepath.Join(certsDir, CAFile)))
	if err != nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("dir", certsDir).Wrap(err)
	}
	keyPEM, err := os.ReadFile(filepath.Clean(filepath.Join(certsDir, caKey)))
	if err != nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("dir", certsDir).Wrap(err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("dir", certsDir).Errorf("failed to decode CA certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("dir", certsDir).Wrap(err)
	}

	block, _ = pem.Decode(keyPEM)
	if block == nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("dir", certsDir).Errorf("failed to decode CA key PEM")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("dir", certsDir).Wrap(err)
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// LoadServerTLS builds the listener config from {name}.crt and {name}.key.
func LoadServerTLS(certsDir, name string) (*cryptotls.Config, error) {
	cert, err := cryptotls.LoadX509KeyPair(
		filepath.Clean(filepath.Join(certsDir, name+".crt")),
		filepath.Clean(filepath.Join(certsDir, name+".key")),
	)
	if err != nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("dir", certsDir).With("name", name).Wrap(err)
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		MinVersion:   cryptotls.VersionTLS13,
	}, nil
}

// LoadClientTLS builds a client config that trusts only root-ca.crt.
func LoadClientTLS(certsDir, serverName string) (*cryptotls.Config, error) {
	caPEM, err := os.ReadFile(filepath.Clean(filepath.Join(certsDir, CAFile)))
	if err != nil {
		return nil, oops.Code("CERT_LOAD_FAILED").With("dir", certsDir).Wrap(err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, oops.Code("CERT_LOAD_FAILED").With("dir", certsDir).Errorf("failed to add CA certificate to pool")
	}
	return &cryptotls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: cryptotls.VersionTLS13,
	}, nil
}

func saveCert(path string, cert *x509.Certificate) error {
	return writePEM(path, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

func saveKey(path string, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Code("CERT_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return writePEM(path, &pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func writePEM(path string, block *pem.Block) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return oops.Code("CERT_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := pem.Encode(f, block); err != nil {
		_ = f.Close()
		return oops.Code("CERT_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code("CERT_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
