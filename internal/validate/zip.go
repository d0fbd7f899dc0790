package validate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/JonMunkholm/landingzone/internal/catalog"
	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/logging"
)

// Member is an archive entry that passed validation, extracted to disk.
type Member struct {
	// Name is the entry's base name.
	Name        string
	EntryName   string
	PatternName string
	Pattern     catalog.Pattern
	Path        string
	Size        int64
	Kind        core.PayloadKind
}

// Close removes the extracted member.
func (m Member) Close() error {
	if m.Path == "" {
		return nil
	}
	if err := os.Remove(m.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CloseMembers removes every extracted member.
func CloseMembers(members []Member) {
	for _, m := range members {
		_ = m.Close()
	}
}

// ExpandZip extracts the archive at archive.Path into workDir and validates
// each entry against the container's member patterns. Entries that fail
// with a classified failure are excluded; an unclassified error aborts the
// expansion. When no member survives the result is a
// NoValidMembersInArchive failure. Members are returned in archive order
// and the caller owns their files.
func ExpandZip(ctx context.Context, p *Pipeline, archive Subject, container catalog.Pattern, workDir string) ([]Member, error) {
	zr, err := zip.OpenReader(archive.Path)
	if err != nil {
		return nil, core.Failf(core.InvalidCompression, "open archive %s: %v", archive.Name, err)
	}
	defer zr.Close()

	log := logging.WithFields(ctx, "zip", archive.Name, "pattern", container.Name)

	var (
		members  []Member
		excluded []string
	)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			CloseMembers(members)
			return nil, err
		}
		name := path.Base(f.Name)
		if f.FileInfo().IsDir() || name == "" || name == "." || name == "/" {
			continue
		}

		m, err := extract(f, name, workDir)
		if err != nil {
			CloseMembers(members)
			return nil, fmt.Errorf("extract %s from %s: %w", f.Name, archive.Name, err)
		}

		subj := Subject{
			Name:       name,
			ZipName:    archive.Name,
			SourceName: archive.SourceName,
			Path:       m.Path,
			Size:       m.Size,
			Kind:       m.Kind,
		}
		res, err := p.Run(ctx, subj, memberChain(container, m.Kind))
		if err != nil {
			_ = m.Close()
			if _, ok := core.AsFailure(err); !ok {
				CloseMembers(members)
				return nil, err
			}
			log.Warn("archive member excluded", "member", name, "error", err)
			p.metrics.RecordExcludedMember()
			excluded = append(excluded, name)
			continue
		}

		m.Pattern = res.Pattern
		m.PatternName = res.Pattern.Name
		members = append(members, m)
	}

	if len(members) == 0 {
		return nil, core.Fail(core.NoValidMembersInArchive,
			fmt.Sprintf("no valid member in archive %s", archive.Name),
			map[string]any{"zip_file_name": archive.Name, "excluded_members": excluded})
	}
	log.Info("archive expanded", "members", len(members), "excluded", len(excluded))
	return members, nil
}

func memberChain(container catalog.Pattern, kind core.PayloadKind) []Check {
	if kind.IsExcel() {
		return ExcelMemberChain(container)
	}
	return MemberChain(container)
}

func extract(f *zip.File, name, workDir string) (Member, error) {
	kind, _ := core.KindOf(name)
	m := Member{Name: name, EntryName: f.Name, Kind: kind}

	rc, err := f.Open()
	if err != nil {
		return m, err
	}
	defer rc.Close()

	out, err := os.CreateTemp(workDir, "member-*"+filepath.Ext(name))
	if err != nil {
		return m, err
	}
	m.Path = out.Name()

	m.Size, err = io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = m.Close()
		return m, err
	}
	return m, nil
}
