package etl

import (
	"context"
	"errors"
	"fmt"

	"github.com/oarkflow/hl7analyzer/pkg/adapters/fileadapter"
	"github.com/oarkflow/hl7analyzer/pkg/config"
	"github.com/oarkflow/hl7analyzer/pkg/parsers"
	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

// PatientRecords returns one record per distinct patient identifier.
func (b *BatchResult) PatientRecords() ([]utils.Record, error) {
	ids, err := b.PatientIDs()
	if err != nil {
		return nil, err
	}
	records := make([]utils.Record, len(ids))
	for i, id := range ids {
		records[i] = utils.Record{parsers.AttrPatientID: id}
	}
	return records, nil
}

// Export writes the views of batch to the configured output files. A batch
// without patient identifiers writes no patients file.
func Export(ctx context.Context, batch *BatchResult, out config.OutputConfig) error {
	if out.Table != "" {
		if err := fileadapter.Store(ctx, out.Table, out.Append, batch.Table.Columns, batch.Table.Records()); err != nil {
			return fmt.Errorf("export table: %w", err)
		}
	}
	if out.Details != "" {
		if err := fileadapter.Store(ctx, out.Details, out.Append, batch.Columns(), batch.Records); err != nil {
			return fmt.Errorf("export details: %w", err)
		}
	}
	if out.Patients != "" {
		records, err := batch.PatientRecords()
		if errors.Is(err, ErrNoPatientIDs) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fileadapter.Store(ctx, out.Patients, out.Append, []string{parsers.AttrPatientID}, records); err != nil {
			return fmt.Errorf("export patients: %w", err)
		}
	}
	return nil
}
