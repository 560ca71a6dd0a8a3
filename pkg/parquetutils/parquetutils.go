package parquetutils

import (
	"github.com/cockroachdb/errors"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// ReaderConcurrency parallel number of file readers.
var ReaderConcurrency int64 = 8

// WriterConcurrency parallel number of file writers.
var WriterConcurrency int64 = 4

// WriteAll encodes the records into a parquet file in memory.
func WriteAll[T any](records []T) ([]byte, error) {
	buf := NewBuffer()
	w, err := writer.NewParquetWriter(buf, new(T), WriterConcurrency)
	if err != nil {
		return nil, errors.Wrap(err, "can't create parquet writer")
	}
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return nil, errors.Wrap(err, "failed to write parquet record")
		}
	}
	if err := w.WriteStop(); err != nil {
		return nil, errors.Wrap(err, "failed to finalize parquet file")
	}
	return buf.Bytes(), nil
}

// ReadAll reads all records from the parquet bytes.
func ReadAll[T any](data []byte) ([]T, error) {
	r, err := reader.NewParquetReader(NewBufferFrom(data), new(T), ReaderConcurrency)
	if err != nil {
		return nil, errors.Wrap(err, "can't create parquet reader")
	}
	defer r.ReadStop()

	records := make([]T, r.GetNumRows())
	if err = r.Read(&records); err != nil {
		return nil, errors.Wrap(err, "failed to read parquet data")
	}

	return records, nil
}
