package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-whisky/models"
)

// MultiWriter fans each batch out to several writers in order.
type MultiWriter struct {
	names   []string
	writers []OutputWriter
	mu      sync.Mutex
}

// NewMultiWriter combines writers. names label errors and must match
// writers in length.
func NewMultiWriter(names []string, writers ...OutputWriter) *MultiWriter {
	return &MultiWriter{names: names, writers: writers}
}

// NewDualWriter writes CSV and JSONL side by side.
func NewDualWriter(csvFilename, jsonFilename string) (*MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, err
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, err
	}

	return NewMultiWriter([]string{"csv", "json"}, csvWriter, jsonWriter), nil
}

// Write forwards records to every writer, stopping at the first failure.
func (mw *MultiWriter) Write(records []*models.Whisky) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for i, w := range mw.writers {
		if err := w.Write(records); err != nil {
			return fmt.Errorf("%s write: %w", mw.name(i), err)
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for i, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close: %w", mw.name(i), err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates every writer and joins their errors.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s validate: %w", mw.name(i), err))
		}
	}
	return errors.Join(errs...)
}

func (mw *MultiWriter) name(i int) string {
	if i < len(mw.names) {
		return mw.names[i]
	}
	return fmt.Sprintf("writer %d", i)
}
