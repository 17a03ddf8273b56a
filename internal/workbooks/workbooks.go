package workbooks

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/parkstats/config"
	"github.com/vinodismyname/parkstats/internal/parking"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnsupportedFormat indicates an extension the loader cannot decode.
	ErrUnsupportedFormat = errors.New("workbooks: unsupported format")
	// ErrEmptySheet indicates a workbook without a header row.
	ErrEmptySheet = errors.New("workbooks: worksheet is empty")
	// ErrPayloadTooLarge indicates an upload above the configured size limit.
	ErrPayloadTooLarge = errors.New("workbooks: payload too large")
	// ErrTooManyFiles indicates more uploads than a single run accepts.
	ErrTooManyFiles = errors.New("workbooks: too many files")
	// ErrCorrupt indicates a payload the decoder could not read.
	ErrCorrupt = errors.New("workbooks: unreadable payload")
)

// maxXLSRows bounds legacy .xls reads; the format itself caps at 65536 rows.
const maxXLSRows = 65536

// Upload is one spreadsheet payload received from a client.
type Upload struct {
	Name string
	Data []byte
}

// WorkbookGate coordinates capacity for concurrently decoded workbooks (backed by runtime.Controller).
type WorkbookGate interface {
	AcquireWorkbook(ctx context.Context) error
	ReleaseWorkbook()
}

// PathValidator abstracts filesystem path validation. Implementations should
// return a canonical absolute path if allowed, or an error when denied.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
}

// Loader decodes spreadsheet payloads into parking datasets. Nothing is
// cached: every call reads and decodes its input from scratch.
type Loader struct {
	gate      WorkbookGate
	validator PathValidator
	maxBytes  int64
	maxFiles  int
}

// NewLoader constructs a Loader. Gate and validator can be nil for tests;
// maxBytes or maxFiles <= 0 use the configured defaults.
func NewLoader(gate WorkbookGate, validator PathValidator, maxBytes int64, maxFiles int) *Loader {
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxUploadBytes
	}
	if maxFiles <= 0 {
		maxFiles = config.DefaultMaxFilesPerRun
	}
	return &Loader{
		gate:      gate,
		validator: validator,
		maxBytes:  maxBytes,
		maxFiles:  maxFiles,
	}
}

// SupportedExtension reports whether the loader can decode files with ext.
func SupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm", ".xls", ".csv":
		return true
	}
	return false
}

// LoadPath validates path against the allow-list and decodes the file.
func (l *Loader) LoadPath(ctx context.Context, path string) (parking.Dataset, error) {
	if l.validator != nil {
		canonical, err := l.validator.ValidateOpenPath(path)
		if err != nil {
			return parking.Dataset{}, err
		}
		path = canonical
	}
	info, err := os.Stat(path)
	if err != nil {
		return parking.Dataset{}, err
	}
	if info.Size() > l.maxBytes {
		return parking.Dataset{}, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrPayloadTooLarge, filepath.Base(path), info.Size(), l.maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return parking.Dataset{}, err
	}
	return l.LoadBytes(ctx, filepath.Base(path), data)
}

// LoadPaths decodes several files concurrently, preserving input order.
func (l *Loader) LoadPaths(ctx context.Context, paths []string) ([]parking.Dataset, error) {
	if len(paths) > l.maxFiles {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyFiles, len(paths), l.maxFiles)
	}
	out := make([]parking.Dataset, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			ds, err := l.LoadPath(gctx, p)
			if err != nil {
				return err
			}
			out[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return uniqueNames(out), nil
}

// LoadAll decodes uploaded payloads concurrently, preserving input order.
func (l *Loader) LoadAll(ctx context.Context, uploads []Upload) ([]parking.Dataset, error) {
	if len(uploads) > l.maxFiles {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyFiles, len(uploads), l.maxFiles)
	}
	out := make([]parking.Dataset, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range uploads {
		g.Go(func() error {
			ds, err := l.LoadBytes(gctx, u.Name, u.Data)
			if err != nil {
				return err
			}
			out[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return uniqueNames(out), nil
}

// LoadBytes decodes a single payload, choosing the decoder by name extension.
// The first worksheet is read; its first row is the header.
func (l *Loader) LoadBytes(ctx context.Context, name string, data []byte) (parking.Dataset, error) {
	if int64(len(data)) > l.maxBytes {
		return parking.Dataset{}, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrPayloadTooLarge, name, len(data), l.maxBytes)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !SupportedExtension(ext) {
		return parking.Dataset{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if err := l.acquire(ctx); err != nil {
		return parking.Dataset{}, err
	}
	defer l.release()

	var (
		rows [][]string
		err  error
	)
	switch ext {
	case ".xls":
		rows, err = decodeXLS(data)
	case ".csv":
		rows, err = decodeCSV(data)
	default:
		rows, err = decodeXLSX(data)
	}
	if err != nil {
		if errors.Is(err, ErrEmptySheet) {
			return parking.Dataset{}, fmt.Errorf("%w: %s", ErrEmptySheet, name)
		}
		return parking.Dataset{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	if len(rows) == 0 {
		return parking.Dataset{}, fmt.Errorf("%w: %s", ErrEmptySheet, name)
	}

	zerolog.Ctx(ctx).Debug().Str("file", name).Int("rows", len(rows)-1).Int("columns", len(rows[0])).Msg("workbook decoded")
	return parking.Dataset{Name: name, Header: rows[0], Rows: rows[1:]}, nil
}

func decodeXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmptySheet
	}
	// Raw values keep date cells as serial numbers instead of locale-formatted text.
	return f.GetRows(sheet, excelize.Options{RawCellValue: true})
}

func decodeXLS(data []byte) (rows [][]string, err error) {
	// The legacy reader panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("corrupt xls payload: %v", r)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, ErrEmptySheet
	}
	return wb.ReadAllCells(maxXLSRows), nil
}

func decodeCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = sniffDelimiter(data)

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// sniffDelimiter picks ';' for semicolon-separated exports, ',' otherwise.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// uniqueNames suffixes repeated dataset names so source tags stay distinct.
func uniqueNames(in []parking.Dataset) []parking.Dataset {
	seen := map[string]int{}
	for i := range in {
		n := seen[in[i].Name]
		seen[in[i].Name] = n + 1
		if n > 0 {
			in[i].Name = fmt.Sprintf("%s (%d)", in[i].Name, n+1)
		}
	}
	return in
}

func (l *Loader) acquire(ctx context.Context) error {
	if l.gate == nil {
		return nil
	}
	return l.gate.AcquireWorkbook(ctx)
}

func (l *Loader) release() {
	if l.gate == nil {
		return
	}
	l.gate.ReleaseWorkbook()
}
