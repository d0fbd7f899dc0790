package ingest

import (
	"context"

	"github.com/JonMunkholm/landingzone/internal/catalog"
	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/decrypt"
	"github.com/JonMunkholm/landingzone/internal/logging"
	"github.com/JonMunkholm/landingzone/internal/transform"
	"github.com/JonMunkholm/landingzone/internal/validate"
)

// Payload is a source file whose plaintext is on local disk.
type Payload struct {
	Origin  Origin
	Catalog *catalog.Catalog
	File    core.SourceFile
	Copy    *decrypt.WorkingCopy
}

func (p *Payload) subject() validate.Subject {
	return validate.Subject{
		Name:       p.File.LogicalName,
		SourceName: p.File.SourceName,
		Path:       p.Copy.Path,
		Size:       p.Copy.Size,
		Kind:       p.File.Kind,
	}
}

// Handler validates and transforms one payload kind. A nil error means the
// file is ready to archive.
type Handler func(ctx context.Context, p *Payload) error

func (o *Orchestrator) handleDelimited(ctx context.Context, p *Payload) error {
	res, err := o.validate.Run(ctx, p.subject(), validate.FlatChain(p.Catalog))
	if err != nil {
		return err
	}
	_, err = o.transform.Run(ctx, o.flatJob(p, res.Pattern))
	return err
}

func (o *Orchestrator) handleWorkbook(ctx context.Context, p *Payload) error {
	res, err := o.validate.Run(ctx, p.subject(), validate.ExcelChain(p.Catalog))
	if err != nil {
		return err
	}
	_, err = o.transform.Run(ctx, o.flatJob(p, res.Pattern))
	return err
}

// handleArchive validates the container, expands its valid members and
// transforms all of them before publishing any. A member failing its
// transform fails the archive and discards the outputs already written.
func (o *Orchestrator) handleArchive(ctx context.Context, p *Payload) error {
	subj := p.subject()
	res, err := o.validate.Run(ctx, subj, validate.ZipChain(p.Catalog))
	if err != nil {
		return err
	}
	container := res.Pattern

	members, err := validate.ExpandZip(ctx, o.validate, subj, container, o.cfg.WorkDir)
	if err != nil {
		return err
	}
	defer validate.CloseMembers(members)

	log := logging.WithFields(ctx, "zip", p.File.LogicalName)
	jobs := make([]transform.Job, 0, len(members))
	outs := make([]transform.Output, 0, len(members))
	for _, m := range members {
		job := transform.Job{
			File:      p.File,
			Name:      m.Name,
			ZipName:   p.File.LogicalName,
			Path:      m.Path,
			Kind:      m.Kind,
			Pattern:   m.Pattern,
			Container: &container,
			Output:    p.Origin.Output,
		}
		out, err := o.transform.Transform(ctx, job)
		if err != nil {
			if derr := o.transform.Discard(ctx, append(outs, out)...); derr != nil {
				log.Warn("discard member outputs failed", "error", derr)
			}
			return err
		}
		jobs = append(jobs, job)
		outs = append(outs, out)
		log.Debug("member transformed", "member", m.Name, "pattern", m.PatternName)
	}

	for i := range jobs {
		if err := o.transform.Publish(ctx, jobs[i], outs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) flatJob(p *Payload, pattern catalog.Pattern) transform.Job {
	return transform.Job{
		File:    p.File,
		Name:    p.File.LogicalName,
		Path:    p.Copy.Path,
		Kind:    p.File.Kind,
		Pattern: pattern,
		Output:  p.Origin.Output,
	}
}
