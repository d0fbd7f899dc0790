package decrypt

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

const armorHeader = "-----BEGIN"

// PGP decrypts OpenPGP messages with a private key.
type PGP struct {
	keyring openpgp.EntityList
	dir     string
}

// NewPGP loads a private key. keyMaterial is the base64 encoding of an
// armored or binary key; plain armored text is accepted too. Every
// protected key and subkey is unlocked with passphrase, which is empty in
// the usual deployment.
func NewPGP(keyMaterial, passphrase, workDir string) (*PGP, error) {
	keyring, err := readKeyRing(keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	for _, e := range keyring {
		if e.PrivateKey == nil {
			return nil, fmt.Errorf("load private key: key %X has no private part", e.PrimaryKey.Fingerprint)
		}
		if err := e.DecryptPrivateKeys([]byte(passphrase)); err != nil {
			return nil, fmt.Errorf("unlock private key: %w", err)
		}
	}
	return &PGP{keyring: keyring, dir: workDir}, nil
}

// Decrypt implements Decrypter. Armored and binary messages are accepted.
func (p *PGP) Decrypt(ctx context.Context, r io.Reader, logicalName string) (*WorkingCopy, error) {
	body, err := dearmor(r)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", logicalName, err)
	}
	md, err := openpgp.ReadMessage(body, p.keyring, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", logicalName, err)
	}
	wc, err := Materialize(ctx, p.dir, logicalName, md.UnverifiedBody)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", logicalName, err)
	}
	return wc, nil
}

// PGPEncrypter encrypts payloads to a public key.
type PGPEncrypter struct {
	recipients openpgp.EntityList
}

// NewPGPEncrypter loads a public key in the same encodings NewPGP accepts.
func NewPGPEncrypter(keyMaterial string) (*PGPEncrypter, error) {
	keyring, err := readKeyRing(keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("load public key: %w", err)
	}
	return &PGPEncrypter{recipients: keyring}, nil
}

// Encrypt writes r to w as a binary OpenPGP message.
func (e *PGPEncrypter) Encrypt(w io.Writer, r io.Reader) error {
	pt, err := openpgp.Encrypt(w, e.recipients, nil, &openpgp.FileHints{IsBinary: true}, nil)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	if _, err := io.Copy(pt, r); err != nil {
		pt.Close()
		return fmt.Errorf("encrypt: %w", err)
	}
	return pt.Close()
}

func readKeyRing(material string) (openpgp.EntityList, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, fmt.Errorf("no key material")
	}

	raw := []byte(material)
	if !strings.HasPrefix(material, armorHeader) {
		decoded, err := base64.StdEncoding.DecodeString(material)
		if err != nil {
			return nil, fmt.Errorf("decode key material: %w", err)
		}
		raw = decoded
	}

	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte(armorHeader)) {
		return openpgp.ReadArmoredKeyRing(bytes.NewReader(raw))
	}
	return openpgp.ReadKeyRing(bytes.NewReader(raw))
}

func dearmor(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(64)
	if !bytes.HasPrefix(bytes.TrimLeft(head, " \t\r\n"), []byte(armorHeader)) {
		return br, nil
	}
	block, err := armor.Decode(br)
	if err != nil {
		return nil, err
	}
	return block.Body, nil
}
