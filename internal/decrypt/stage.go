package decrypt

import (
	"context"
	"fmt"
	"io"

	"github.com/JonMunkholm/landingzone/internal/audit"
	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/logging"
)

// Stage decrypts source files by suffix and records a decryption activity.
type Stage struct {
	registry *Registry
	recorder audit.Recorder
}

// NewStage creates a decryption stage.
func NewStage(registry *Registry, recorder audit.Recorder) *Stage {
	return &Stage{registry: registry, recorder: recorder}
}

// Run decrypts r, the ciphertext of file. Every failure is unclassified so
// the file stays at its source for the next invocation.
func (s *Stage) Run(ctx context.Context, r io.Reader, file core.SourceFile) (*WorkingCopy, error) {
	log := logging.FromContext(ctx)

	d, ok := s.registry.Get(file.Encryption)
	if !ok {
		return nil, fmt.Errorf("decrypt %s: no decrypter for .%s", file.FileName, file.Encryption)
	}

	act, err := audit.Begin(ctx, s.recorder, audit.Start{
		Activity:       audit.ActivityDecryption,
		SourceName:     file.SourceName,
		SourceFileName: file.FileName,
	})
	if err != nil {
		return nil, err
	}
	act.Set("file_name", file.FileName)

	log.Info("decryption started", "file", file.FileName, "scheme", file.Encryption)
	wc, err := d.Decrypt(ctx, r, file.LogicalName)
	if err != nil {
		return nil, act.Finish(ctx, err, "")
	}
	act.Set("plaintext_size", wc.Size)
	if err := act.Finish(ctx, nil, file.LogicalName); err != nil {
		wc.Close()
		return nil, err
	}
	log.Info("decryption completed", "file", file.LogicalName, "size", wc.Size)
	return wc, nil
}
