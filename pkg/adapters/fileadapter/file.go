package fileadapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/log"

	"github.com/oarkflow/hl7analyzer/pkg/contracts"
	"github.com/oarkflow/hl7analyzer/pkg/utils"
	"github.com/oarkflow/hl7analyzer/pkg/utils/fileutil"
)

// Adapter stores record batches in a CSV or JSON file chosen by extension.
type Adapter struct {
	Filename   string
	extension  string
	appendMode bool
	header     []string
	appender   contracts.Appender[utils.Record]
	stored     int
}

// New returns a loader for fileName. header fixes the CSV column order.
func New(fileName string, appendMode bool, header ...string) *Adapter {
	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	return &Adapter{
		Filename:   fileName,
		extension:  extension,
		appendMode: appendMode,
		header:     header,
	}
}

// Setup creates the parent directory and opens the appender.
func (fl *Adapter) Setup(_ context.Context) error {
	if dir := filepath.Dir(fl.Filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	appender, err := fileutil.NewAppender(fl.Filename, fl.extension, fl.appendMode, fl.header...)
	if err != nil {
		return err
	}
	fl.appender = appender
	return nil
}

func (fl *Adapter) StoreBatch(_ context.Context, records []utils.Record) error {
	if fl.appender == nil {
		return fmt.Errorf("file loader %s: Setup not called", fl.Filename)
	}
	if err := fl.appender.AppendBatch(records); err != nil {
		return fmt.Errorf("file loader %s: %w", fl.Filename, err)
	}
	fl.stored += len(records)
	return nil
}

func (fl *Adapter) Close() error {
	if fl.appender == nil {
		return nil
	}
	log.Printf("[FileLoader] wrote %d records to %s", fl.stored, fl.Filename)
	return fl.appender.Close()
}

// Store writes records to fileName in one call.
func Store(ctx context.Context, fileName string, appendMode bool, header []string, records []utils.Record) error {
	loader := New(fileName, appendMode, header...)
	if err := loader.Setup(ctx); err != nil {
		return err
	}
	if err := loader.StoreBatch(ctx, records); err != nil {
		_ = loader.Close()
		return err
	}
	return loader.Close()
}

var _ contracts.Loader = (*Adapter)(nil)
