package decrypt

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// Age decrypts age-encrypted payloads with X25519 identities.
type Age struct {
	identities []age.Identity
	dir        string
}

// NewAge parses an identity file's contents (one or more AGE-SECRET-KEY
// lines, comments allowed).
func NewAge(identity, workDir string) (*Age, error) {
	ids, err := age.ParseIdentities(strings.NewReader(identity))
	if err != nil {
		return nil, fmt.Errorf("load age identity (private key): %w", err)
	}
	return &Age{identities: ids, dir: workDir}, nil
}

// Decrypt implements Decrypter. ASCII-armored files are accepted.
func (a *Age) Decrypt(ctx context.Context, r io.Reader, logicalName string) (*WorkingCopy, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if head, _ := br.Peek(len(armor.Header)); bytes.Equal(head, []byte(armor.Header)) {
		src = armor.NewReader(br)
	}

	pt, err := age.Decrypt(src, a.identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", logicalName, err)
	}
	wc, err := Materialize(ctx, a.dir, logicalName, pt)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", logicalName, err)
	}
	return wc, nil
}
