// Package hostkey manages the SSH host key of the edit console and the
// authorized_keys list that gates access to it.
package hostkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

const (
	keyFile = "ssh_host_ed25519_key"
	pubFile = "ssh_host_ed25519_key.pub"
)

// HostKey is the console's ED25519 host key.
type HostKey struct {
	Signer      ssh.Signer
	PublicKey   ssh.PublicKey
	Fingerprint string // SHA256:... as printed by ssh-keygen -l
}

// Load reads the host key from dataDir. If it does not exist yet, a new one
// is generated and persisted.
func Load(dataDir string) (*HostKey, error) {
	privPath := filepath.Join(dataDir, keyFile)

	privPEM, err := os.ReadFile(privPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading host key: %w", err)
		}
		return generate(dataDir, privPath, filepath.Join(dataDir, pubFile))
	}
	return parse(privPEM)
}

func generate(dir, privPath, pubPath string) (*HostKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating host key: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	pkcs8, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshaling host key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return nil, fmt.Errorf("writing host key: %w", err)
	}

	hk, err := fromPrivate(priv)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(pubPath, ssh.MarshalAuthorizedKey(hk.PublicKey), 0o644); err != nil {
		return nil, fmt.Errorf("writing public host key: %w", err)
	}
	return hk, nil
}

func parse(privPEM []byte) (*HostKey, error) {
	block, _ := pem.Decode(privPEM)
	if block == nil {
		return nil, errors.New("no PEM block found in host key")
	}
	raw, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing host key: %w", err)
	}
	priv, ok := raw.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("host key is not ED25519")
	}
	return fromPrivate(priv)
}

func fromPrivate(priv ed25519.PrivateKey) (*HostKey, error) {
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("creating SSH signer: %w", err)
	}
	pub := signer.PublicKey()
	return &HostKey{
		Signer:      signer,
		PublicKey:   pub,
		Fingerprint: ssh.FingerprintSHA256(pub),
	}, nil
}

// AuthorizedKeys parses an OpenSSH authorized_keys file. A missing file
// yields no keys and no error; parsing stops at the first malformed line.
func AuthorizedKeys(path string) ([]ssh.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading authorized keys: %w", err)
	}

	var keys []ssh.PublicKey
	for len(data) > 0 {
		key, _, _, rest, err := ssh.ParseAuthorizedKey(data)
		if err != nil {
			break
		}
		keys = append(keys, key)
		data = rest
	}
	return keys, nil
}
