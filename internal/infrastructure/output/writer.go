package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/dataset"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/logging"
	"github.com/riskibarqy/fpl-data-pipeline/internal/usecase"
	"github.com/valyala/bytebufferpool"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// FormatFromPath picks the output format from the file extension. Unknown
// extensions get CSV.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".parquet", ".pq":
		return FormatParquet
	default:
		return FormatCSV
	}
}

type Result struct {
	Path   string
	Format Format
	Rows   int
	Bytes  int
}

type Writer struct {
	logger *logging.Logger
}

func NewWriter(logger *logging.Logger) *Writer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Writer{logger: logger}
}

func (w *Writer) Write(ctx context.Context, path string, ds usecase.Dataset) (Result, error) {
	if ds.IsDocument() {
		return w.WriteDocument(ctx, path, ds.Document)
	}
	return w.WriteTable(ctx, path, ds.Table)
}

// WriteDocument stores an upstream JSON document re-indented with two
// spaces. Documents are JSON whatever the extension says.
func (w *Writer) WriteDocument(ctx context.Context, path string, raw []byte) (Result, error) {
	if FormatFromPath(path) != FormatJSON {
		w.logger.WarnContext(ctx, "document resources are always written as JSON", "path", path)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := encodeDocument(buf, raw); err != nil {
		return Result{}, err
	}

	result := Result{
		Path:   path,
		Format: FormatJSON,
		Rows:   usecase.Dataset{Document: raw}.Rows(),
		Bytes:  buf.Len(),
	}
	if err := writeFileAtomic(path, buf.B); err != nil {
		return Result{}, err
	}
	w.logger.InfoContext(ctx, "wrote", "path", path, "format", result.Format, "rows", result.Rows)
	return result, nil
}

func (w *Writer) WriteTable(ctx context.Context, path string, table *dataset.Table) (Result, error) {
	if table == nil {
		table = dataset.New()
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	format := FormatFromPath(path)
	var err error
	switch format {
	case FormatJSON:
		err = encodeTableJSON(buf, table)
	case FormatParquet:
		err = encodeTableParquet(buf, table)
	default:
		err = encodeTableCSV(buf, table)
	}
	if err != nil {
		return Result{}, fmt.Errorf("encode %s: %w", format, err)
	}

	if err := writeFileAtomic(path, buf.B); err != nil {
		return Result{}, err
	}

	result := Result{Path: path, Format: format, Rows: table.Len(), Bytes: buf.Len()}
	w.logger.InfoContext(ctx, "wrote", "path", path, "format", format, "rows", result.Rows)
	return result, nil
}

// writeFileAtomic creates parent directories, then writes through a temp
// file in the same directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpName, path, err)
	}
	committed = true
	return nil
}
