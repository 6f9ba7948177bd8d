// Package orchestrate drives one firmware-tree analysis run: a pre-order
// directory walk, per-entry result-id minting, and per-analyzer
// bind/evaluate/dispatch/persist sequencing in strict configuration order,
// all inside a single all-or-nothing transaction.
package orchestrate

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"

	"github.com/cruxfw/faaf/config"
	"github.com/cruxfw/faaf/dispatch"
	"github.com/cruxfw/faaf/evalcond"
	"github.com/cruxfw/faaf/store"
)

// Options bundles everything one Run call needs. Logger and Tracer default
// to the standard logrus logger and the global opentracing tracer when nil.
type Options struct {
	FirmwareRoot string
	Config       *config.Config
	Store        *store.Store
	Dispatcher   dispatch.Dispatcher
	Logger       *logrus.Logger
	Tracer       opentracing.Tracer
}

// Run walks FirmwareRoot and executes every configured analyzer against
// every entry, committing the whole run as one transaction. Any failure
// aborts the run without committing, per the core's all-or-nothing design.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}

	runID := uuid.NewV4()
	log := logger.WithFields(logrus.Fields{
		"system": "orchestrate",
		"run_id": runID.String(),
	})

	entries, err := Walk(opts.FirmwareRoot)
	if err != nil {
		return fmt.Errorf("orchestrate: walk %q: %w", opts.FirmwareRoot, err)
	}

	tx, err := opts.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("orchestrate: begin transaction: %w", err)
	}

	sb, err := opts.Store.PrepareSelects(tx, opts.Config)
	if err != nil {
		_ = tx.Rollback()
		log.WithField("err", err).Error("transaction aborted")
		return err
	}

	guarded := dispatch.Recover(opts.Dispatcher)

	rootSpan := tracer.StartSpan("orchestrate.run")
	rootSpan.SetTag("firmware_root", opts.FirmwareRoot)
	defer rootSpan.Finish()

	for _, entry := range entries {
		if err := runEntry(tracer, rootSpan, log, tx, sb, opts.Config, guarded, entry); err != nil {
			_ = tx.Rollback()
			log.WithFields(logrus.Fields{"path": entry.RelPath, "err": err}).Error("transaction aborted")
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		log.WithField("err", err).Error("transaction aborted")
		return fmt.Errorf("orchestrate: commit: %w", err)
	}
	log.WithField("entries", len(entries)).Info("transaction committed")
	return nil
}

func runEntry(
	tracer opentracing.Tracer,
	rootSpan opentracing.Span,
	log *logrus.Entry,
	tx *store.Tx,
	sb *store.SelectBatch,
	cfg *config.Config,
	d dispatch.Dispatcher,
	entry Entry,
) error {
	span := tracer.StartSpan("orchestrate.entry", opentracing.ChildOf(rootSpan.Context()))
	span.SetTag("path", entry.RelPath)
	defer span.Finish()

	rid, err := tx.InsertPath(entry.RelPath)
	if err != nil {
		return fmt.Errorf("orchestrate: insert path %q: %w", entry.RelPath, err)
	}
	log.WithFields(logrus.Fields{"path": entry.RelPath, "result_id": rid}).Debug("entry visited")

	for _, a := range cfg.Analyzers {
		if err := runAnalyzer(tracer, span, log, tx, sb, d, a, entry, rid); err != nil {
			return err
		}
	}
	return nil
}

func runAnalyzer(
	tracer opentracing.Tracer,
	entrySpan opentracing.Span,
	log *logrus.Entry,
	tx *store.Tx,
	sb *store.SelectBatch,
	d dispatch.Dispatcher,
	a config.Analyzer,
	entry Entry,
	rid int64,
) error {
	aspan := tracer.StartSpan("orchestrate.analyzer", opentracing.ChildOf(entrySpan.Context()))
	aspan.SetTag("analyzer", a.Name)
	defer aspan.Finish()

	if err := sb.Bind(a.Name, rid); err != nil {
		return fmt.Errorf("orchestrate: bind analyzer %q: %w", a.Name, err)
	}

	fields := logrus.Fields{"path": entry.RelPath, "analyzer": a.Name}

	if len(a.Conditions) > 0 {
		pass, err := sb.EvaluateConditions(a.Name)
		if err != nil {
			return fmt.Errorf("orchestrate: evaluate conditions for %q: %w", a.Name, err)
		}
		if !pass {
			log.WithFields(fields).Debug("analyzer skipped by condition")
			return nil
		}
	}

	args, err := sb.BuildArguments(a.Name)
	if err != nil {
		return fmt.Errorf("orchestrate: build arguments for %q: %w", a.Name, err)
	}
	args, err = evalcond.Overlay(args, entry.RelPath, entry.AbsPath)
	if err != nil {
		return fmt.Errorf("orchestrate: overlay arguments for %q: %w", a.Name, err)
	}

	out, err := d.Execute(a.Name, a.Extension, args)
	if err != nil {
		return fmt.Errorf("orchestrate: dispatch %q: %w", a.Name, err)
	}

	if err := tx.InsertAnalyzer(a.Name, rid, out); err != nil {
		return fmt.Errorf("orchestrate: insert analyzer row for %q: %w", a.Name, err)
	}
	log.WithFields(fields).Debug("analyzer dispatched")
	return nil
}
