// Package export streams a filtered collection into CSV or XLSX files.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/storekit/internal/domain"
	"github.com/rpattn/storekit/internal/service"
)

// Format selects the output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Service writes collection exports under a working directory.
type Service struct {
	exportDir string
	pageSize  int
}

// Option configures the export service.
type Option func(*Service)

// WithExportDirectory overrides the output directory.
func WithExportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.exportDir = filepath.Clean(dir)
		}
	}
}

// WithPageSize overrides how many records each listing page requests.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// NewService creates an export service.
func NewService(opts ...Option) *Service {
	s := &Service{
		exportDir: filepath.Join(os.TempDir(), "storekit-exports"),
		pageSize:  500,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request describes one export run.
type Request struct {
	Collection *service.Collection[map[string]any]
	Filter     *domain.StructuredFilter
	Sort       string
	// Fields fixes the column set and order. Empty means the sorted union of
	// keys seen on the first page.
	Fields []string
	Format Format
}

// Result summarizes a completed export.
type Result struct {
	Rows         int
	BytesWritten int64
	Path         string
}

// Export streams the filtered collection page by page into a file, promoting
// a temp file on success so partial exports never land under the final name.
func (s *Service) Export(ctx context.Context, req Request) (Result, error) {
	if req.Collection == nil {
		return Result{}, errors.New("collection service is required")
	}
	format := req.Format
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		return Result{}, fmt.Errorf("unsupported export format %q", format)
	}

	if err := s.ensureExportDirectory(); err != nil {
		return Result{}, err
	}

	firstPage, err := req.Collection.List(ctx, service.ListOptions{
		Page:    1,
		PerPage: s.pageSize,
		Sort:    req.Sort,
		Filter:  req.Filter,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to list first export page: %w", err)
	}

	headers := req.Fields
	if len(headers) == 0 {
		headers = unionFields(firstPage.Items)
	}

	exportID := uuid.New()
	finalPath := filepath.Join(s.exportDir, fmt.Sprintf("%s-%s.%s", sanitizeFileComponent(req.Collection.Name()), exportID, format))

	var result Result
	switch format {
	case FormatCSV:
		result, err = s.writeCSV(ctx, req, firstPage, headers, exportID)
	case FormatXLSX:
		result, err = s.writeXLSX(ctx, req, firstPage, headers, exportID)
	}
	if err != nil {
		return Result{}, err
	}

	if err := os.Rename(result.Path, finalPath); err != nil {
		_ = os.Remove(result.Path)
		return Result{}, fmt.Errorf("failed to promote export file: %w", err)
	}
	result.Path = finalPath

	log.Printf("[export] %s completed (rows=%d path=%s)", req.Collection.Name(), result.Rows, finalPath)
	return result, nil
}

func (s *Service) writeCSV(ctx context.Context, req Request, firstPage service.ListResult[map[string]any], headers []string, exportID uuid.UUID) (Result, error) {
	tempFile, err := os.CreateTemp(s.exportDir, fmt.Sprintf("%s-*.csv", exportID))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temp export file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	buffered := bufio.NewWriterSize(tempFile, 1<<20)
	counter := &countingWriter{writer: buffered}
	csvWriter := csv.NewWriter(counter)

	if len(headers) > 0 {
		if err := csvWriter.Write(headers); err != nil {
			return Result{}, fmt.Errorf("failed to write header: %w", err)
		}
	}

	rows := 0
	rowBuffer := make([]string, len(headers))
	err = s.forEachPage(ctx, req, firstPage, func(record map[string]any) error {
		for i, field := range headers {
			rowBuffer[i] = formatValue(record[field])
		}
		if err := csvWriter.Write(rowBuffer); err != nil {
			return fmt.Errorf("failed to write record row: %w", err)
		}
		rows++
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return Result{}, fmt.Errorf("failed to flush rows: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return Result{}, fmt.Errorf("failed to flush buffered rows: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return Result{}, fmt.Errorf("failed to sync export file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close export file: %w", err)
	}

	cleanup = false
	return Result{Rows: rows, BytesWritten: counter.count, Path: tempPath}, nil
}

func (s *Service) writeXLSX(ctx context.Context, req Request, firstPage service.ListResult[map[string]any], headers []string, exportID uuid.UUID) (Result, error) {
	workbook := excelize.NewFile()
	defer func() { _ = workbook.Close() }()

	sheet := workbook.GetSheetName(0)
	stream, err := workbook.NewStreamWriter(sheet)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open stream writer: %w", err)
	}

	rowIndex := 1
	if len(headers) > 0 {
		headerRow := make([]any, len(headers))
		for i, header := range headers {
			headerRow[i] = header
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowIndex)
		if err := stream.SetRow(cell, headerRow); err != nil {
			return Result{}, fmt.Errorf("failed to write header: %w", err)
		}
		rowIndex++
	}

	rows := 0
	rowBuffer := make([]any, len(headers))
	err = s.forEachPage(ctx, req, firstPage, func(record map[string]any) error {
		for i, field := range headers {
			rowBuffer[i] = formatValue(record[field])
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowIndex)
		if err := stream.SetRow(cell, rowBuffer); err != nil {
			return fmt.Errorf("failed to write record row: %w", err)
		}
		rowIndex++
		rows++
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if err := stream.Flush(); err != nil {
		return Result{}, fmt.Errorf("failed to flush stream writer: %w", err)
	}

	tempFile, err := os.CreateTemp(s.exportDir, fmt.Sprintf("%s-*.xlsx", exportID))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temp export file: %w", err)
	}
	tempPath := tempFile.Name()
	written, err := workbook.WriteTo(tempFile)
	if err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return Result{}, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return Result{}, fmt.Errorf("failed to close export file: %w", err)
	}

	return Result{Rows: rows, BytesWritten: written, Path: tempPath}, nil
}

func (s *Service) forEachPage(ctx context.Context, req Request, firstPage service.ListResult[map[string]any], visit func(map[string]any) error) error {
	page := firstPage
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for _, record := range page.Items {
			if err := visit(record); err != nil {
				return err
			}
		}
		if len(page.Items) < s.pageSize {
			return nil
		}
		if page.TotalPages > 0 && page.Page >= page.TotalPages {
			return nil
		}
		// No page totals reported: stop once the pages fetched cover the item
		// total, so a malformed transport cannot loop the export forever.
		if page.TotalPages <= 0 && page.Page*s.pageSize >= page.TotalItems {
			return nil
		}
		next, err := req.Collection.List(ctx, service.ListOptions{
			Page:    page.Page + 1,
			PerPage: s.pageSize,
			Sort:    req.Sort,
			Filter:  req.Filter,
		})
		if err != nil {
			return fmt.Errorf("failed to list export page %d: %w", page.Page+1, err)
		}
		page = next
	}
}

func (s *Service) ensureExportDirectory() error {
	if strings.TrimSpace(s.exportDir) == "" {
		return errors.New("export directory is not configured")
	}
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure export directory: %w", err)
	}
	return nil
}

func unionFields(records []map[string]any) []string {
	seen := make(map[string]struct{})
	for _, record := range records {
		for field := range record {
			seen[field] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "export"
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	case float32, float64, int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%v", v)
	case []byte:
		return string(v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
