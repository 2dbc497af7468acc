package etl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oarkflow/log"
	"github.com/oarkflow/xid/wuid"

	"github.com/oarkflow/hl7analyzer/pkg/contracts"
	"github.com/oarkflow/hl7analyzer/pkg/parsers"
	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

// Status is the outcome of one message in a batch.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// ItemResult reports how one message of a batch was processed.
type ItemResult struct {
	File   string `json:"file"`
	Path   string `json:"path,omitempty"`
	Index  int    `json:"index"`
	Status Status `json:"status"`
	Lines  int    `json:"lines"`
	Err    error  `json:"-"`
}

// Metrics counts pipeline activity across batches.
type Metrics struct {
	Messages  int64 `json:"messages"`
	Parsed    int64 `json:"parsed"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
	Batches   int64 `json:"batches"`
	CacheHits int64 `json:"cache_hits"`
}

type Option func(*Pipeline) error

// WithWorkerCount sets how many messages are parsed concurrently.
func WithWorkerCount(n int) Option {
	return func(p *Pipeline) error {
		if n <= 0 {
			return fmt.Errorf("worker count must be positive, got %d", n)
		}
		p.workerCount = n
		return nil
	}
}

// WithCache memoizes parsing of identical messages, up to size entries.
func WithCache(size int) Option {
	return func(p *Pipeline) error {
		if size == 0 {
			return nil
		}
		cache, err := NewParseCache(size)
		if err != nil {
			return err
		}
		p.cache = cache
		return nil
	}
}

// WithTransformers applies transformers to every extracted record, in order.
func WithTransformers(ts ...contracts.Transformer) Option {
	return func(p *Pipeline) error {
		p.transformers = append(p.transformers, ts...)
		return nil
	}
}

func WithEventBus(eb *EventBus) Option {
	return func(p *Pipeline) error {
		p.eventBus = eb
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) error {
		p.logger = logger
		return nil
	}
}

// WithVerbose logs every message outcome.
func WithVerbose(verbose bool) Option {
	return func(p *Pipeline) error {
		p.verbose = verbose
		return nil
	}
}

// Pipeline parses batches of HL7 messages from one source system into a full
// table and a set of extracted records.
type Pipeline struct {
	source       string
	variant      parsers.Variant
	workerCount  int
	cache        *ParseCache
	transformers []contracts.Transformer
	eventBus     *EventBus
	logger       *log.Logger
	verbose      bool
	metrics      Metrics
}

// New returns a pipeline for the named source system. Unknown names are
// accepted; their messages produce records carrying only the file and source
// columns.
func New(source string, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		source:      source,
		workerCount: 1,
		logger:      &log.DefaultLogger,
	}
	if v, ok := parsers.ParseVariant(source); ok {
		p.variant = v
		p.source = v.String()
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Source returns the source name used to tag records.
func (p *Pipeline) Source() string { return p.source }

// Variant returns the variant whose rules the pipeline applies.
func (p *Pipeline) Variant() parsers.Variant { return p.variant }

// Metrics returns a snapshot of the counters.
func (p *Pipeline) Metrics() Metrics {
	m := Metrics{
		Messages: atomic.LoadInt64(&p.metrics.Messages),
		Parsed:   atomic.LoadInt64(&p.metrics.Parsed),
		Skipped:  atomic.LoadInt64(&p.metrics.Skipped),
		Failed:   atomic.LoadInt64(&p.metrics.Failed),
		Batches:  atomic.LoadInt64(&p.metrics.Batches),
	}
	if p.cache != nil {
		m.CacheHits, _ = p.cache.Stats()
	}
	return m
}

// Close releases the parse cache.
func (p *Pipeline) Close() error {
	if p.cache != nil {
		p.cache.Close()
	}
	return nil
}

type itemOutput struct {
	result ItemResult
	rows   []parsers.TableRow
	record utils.Record
}

// Run processes msgs. One message failing does not stop the batch; its
// status is reported in the result. The returned error is non-nil only when
// ctx ends before the batch completes.
func (p *Pipeline) Run(ctx context.Context, msgs []contracts.Message) (*BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	batch := &BatchResult{
		ID:      wuid.New().String(),
		Source:  p.source,
		Variant: p.variant,
	}
	p.eventBus.Publish(EventBatchStarted, batch)
	p.logger.Info().Str("batch", batch.ID).Str("source", p.source).Int("messages", len(msgs)).Msg("batch started")

	outputs := make([]itemOutput, len(msgs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := p.workerCount
	if workers > len(msgs) {
		workers = len(msgs)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outputs[i] = p.process(ctx, i, msgs[i])
			}
		}()
	}
	var runErr error
feed:
	for i := range msgs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			runErr = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if runErr != nil {
		p.logger.Warn().Str("batch", batch.ID).Err(runErr).Msg("batch cancelled")
		return nil, runErr
	}

	var rows []parsers.TableRow
	batch.Items = make([]ItemResult, len(msgs))
	for i, out := range outputs {
		batch.Items[i] = out.result
		switch out.result.Status {
		case StatusOK:
			rows = append(rows, out.rows...)
			batch.Records = append(batch.Records, out.record)
			p.eventBus.Publish(EventMessageParsed, out.result)
		case StatusSkipped:
			p.eventBus.Publish(EventMessageSkipped, out.result)
		case StatusFailed:
			p.eventBus.Publish(EventMessageFailed, out.result)
		}
		p.logItem(batch.ID, out.result)
	}
	if len(rows) > 0 {
		table, err := parsers.BuildTable(rows)
		if err != nil {
			return nil, err
		}
		batch.Table = table
	}
	batch.Duration = time.Since(start)
	atomic.AddInt64(&p.metrics.Batches, 1)
	p.eventBus.Publish(EventBatchCompleted, batch)
	p.logger.Info().Str("batch", batch.ID).Int("ok", batch.Count(StatusOK)).Int("skipped", batch.Count(StatusSkipped)).
		Int("failed", batch.Count(StatusFailed)).Dur("duration", batch.Duration).Msg("batch completed")
	return batch, nil
}

func (p *Pipeline) process(ctx context.Context, index int, msg contracts.Message) itemOutput {
	atomic.AddInt64(&p.metrics.Messages, 1)
	result := ItemResult{File: msg.FileName, Path: msg.Path, Index: index}
	fail := func(err error) itemOutput {
		atomic.AddInt64(&p.metrics.Failed, 1)
		result.Status = StatusFailed
		result.Err = err
		return itemOutput{result: result}
	}
	if msg.Err != nil {
		return fail(fmt.Errorf("read %s: %w", msg.FileName, msg.Err))
	}
	doc, err := parsers.DecodeMessage(msg)
	if err != nil {
		return fail(err)
	}
	pm := p.cache.parse(doc.Text, p.variant)
	result.Lines = len(pm.segments)
	if len(pm.segments) == 0 {
		atomic.AddInt64(&p.metrics.Skipped, 1)
		result.Status = StatusSkipped
		result.Err = fmt.Errorf("%s: %w", msg.FileName, parsers.ErrEmptyInput)
		return itemOutput{result: result}
	}
	rows := make([]parsers.TableRow, len(pm.segments))
	for i, seg := range pm.segments {
		rows[i] = parsers.TableRow{File: doc.File, Fields: seg.Fields}
	}
	rec := parsers.TagRecord(parsers.ToRecord(pm.details), doc.File, p.source)
	for _, t := range p.transformers {
		rec, err = t.Transform(ctx, rec)
		if err != nil {
			return fail(fmt.Errorf("transformer %s: %w", t.Name(), err))
		}
		if rec == nil {
			return fail(fmt.Errorf("transformer %s: %w", t.Name(), ErrRecordDropped))
		}
	}
	atomic.AddInt64(&p.metrics.Parsed, 1)
	result.Status = StatusOK
	return itemOutput{result: result, rows: rows, record: rec}
}

// ErrRecordDropped reports a transformer that returned no record.
var ErrRecordDropped = errors.New("record dropped")

func (p *Pipeline) logItem(batchID string, r ItemResult) {
	switch r.Status {
	case StatusFailed:
		p.logger.Error().Str("batch", batchID).Str("file", r.File).Int("index", r.Index).Err(r.Err).Msg("message failed")
	case StatusSkipped:
		p.logger.Warn().Str("batch", batchID).Str("file", r.File).Int("index", r.Index).Msg("empty message skipped")
	default:
		if p.verbose {
			p.logger.Info().Str("batch", batchID).Str("file", r.File).Int("lines", r.Lines).Msg("message parsed")
		}
	}
}

// RunSource drains src and processes its messages as one batch.
func (p *Pipeline) RunSource(ctx context.Context, src contracts.Source, opts ...contracts.Option) (*BatchResult, error) {
	if err := src.Setup(ctx); err != nil {
		return nil, fmt.Errorf("source setup: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("source close failed")
		}
	}()
	ch, err := src.Extract(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("source extract: %w", err)
	}
	var msgs []contracts.Message
	for msg := range ch {
		msgs = append(msgs, msg)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Run(ctx, msgs)
}
