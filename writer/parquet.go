package writer

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	"gridflow/models"
)

// SeriesRecord is one aligned activation/imbalance row in the parquet
// series file.
type SeriesRecord struct {
	Timestamp    int64   `parquet:"name=timestamp, type=INT64"`
	Activation   float64 `parquet:"name=activation, type=DOUBLE"`
	Imbalance    float64 `parquet:"name=imbalance, type=DOUBLE"`
	AbsImbalance float64 `parquet:"name=abs_imbalance, type=DOUBLE"`
}

// MetricRecord is one named assessment result in the parquet metrics file.
type MetricRecord struct {
	RunID   string  `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Metric  string  `parquet:"name=metric, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value   float64 `parquet:"name=value, type=DOUBLE"`
	Flagged bool    `parquet:"name=flagged, type=BOOLEAN"`
}

// memoryFileWriter implements ParquetFile for in-memory writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}

func writeParquet(recordType interface{}, write func(pw *pqwriter.ParquetWriter) error) ([]byte, error) {
	fw := newMemoryFileWriter()
	pw, err := pqwriter.NewParquetWriter(fw, recordType, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	if err := write(pw); err != nil {
		pw.WriteStop()
		return nil, err
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}

// seriesParquet encodes the aligned series as a parquet file.
func seriesParquet(points []models.AlignedPoint) ([]byte, error) {
	return writeParquet(new(SeriesRecord), func(pw *pqwriter.ParquetWriter) error {
		for _, p := range points {
			record := SeriesRecord{
				Timestamp:    p.Timestamp.UnixMilli(),
				Activation:   p.Activation,
				Imbalance:    p.Imbalance,
				AbsImbalance: p.AbsImbalance,
			}
			if err := pw.Write(record); err != nil {
				return fmt.Errorf("failed to write series record: %w", err)
			}
		}
		return nil
	})
}

// metricsParquet encodes the metric table as a parquet file. Flagged rows
// carry NaN values, which parquet represents natively.
func metricsParquet(report *models.MetricReport) ([]byte, error) {
	return writeParquet(new(MetricRecord), func(pw *pqwriter.ParquetWriter) error {
		for _, row := range report.Rows {
			record := MetricRecord{
				RunID:   report.RunID,
				Metric:  row.Name,
				Value:   row.Value,
				Flagged: row.Flagged,
			}
			if err := pw.Write(record); err != nil {
				return fmt.Errorf("failed to write metric record: %w", err)
			}
		}
		return nil
	})
}
