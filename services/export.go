package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/sync/errgroup"

	"boqledger/collections"
)

// Export job states.
const (
	JobRequested = "requested"
	JobRendering = "rendering"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// ExportOptions configure the Exporter.
type ExportOptions struct {
	Dir           string
	DefaultLocale string
	Workers       int
}

// ExportJob is the persisted state of one export request.
type ExportJob struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Format       Format    `json:"format"`
	Locale       string    `json:"locale"`
	SheetCount   int       `json:"sheet_count"`
	FileName     string    `json:"file_name,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	ArtifactPath string    `json:"-"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// ContentType is the MIME type of the job's artifact.
func (j *ExportJob) ContentType() string {
	if strings.HasSuffix(j.FileName, ".zip") {
		return "application/zip"
	}
	return j.Format.ContentType()
}

// Artifact references a finished export. The caller delivers it.
type Artifact struct {
	JobID       string   `json:"job_id"`
	Path        string   `json:"-"`
	FileName    string   `json:"file_name"`
	ContentType string   `json:"content_type"`
	Sheets      int      `json:"sheets"`
	StaleSheets []string `json:"stale_sheets"`
	Skipped     []string `json:"skipped_sheets"`
}

// Exporter renders concentration sheets into documents, workbooks and
// archives. It only reads sheet state.
type Exporter struct {
	app  core.App
	agg  *Aggregator
	opts ExportOptions
	now  func() time.Time
}

func NewExporter(app core.App, agg *Aggregator, opts ExportOptions) *Exporter {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = "en"
	}
	return &Exporter{app: app, agg: agg, opts: opts, now: time.Now}
}

// ExportOne renders a single sheet.
func (x *Exporter) ExportOne(ctx context.Context, sheetID string, cols ColumnSelection, format Format, locale string) (*Artifact, error) {
	return x.export(ctx, "ExportOne", []string{sheetID}, false, cols, format, locale)
}

// ExportMany renders the given sheets, or every sheet when all is set.
// Documents are bundled into one zip archive; spreadsheets become one
// workbook with a tab per sheet.
func (x *Exporter) ExportMany(ctx context.Context, sheetIDs []string, all bool, cols ColumnSelection, format Format, locale string) (*Artifact, error) {
	return x.export(ctx, "ExportMany", sheetIDs, all, cols, format, locale)
}

// GetJob returns the state of an export request.
func (x *Exporter) GetJob(id string) (*ExportJob, error) {
	r, err := x.app.FindRecordById(collections.ExportJobs, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError("GetExportJob", id, ErrExportJobNotFound)
		}
		return nil, fmt.Errorf("find export job %s: %w", id, err)
	}
	return jobFromRecord(r), nil
}

func (x *Exporter) export(ctx context.Context, op string, ids []string, all bool, cols ColumnSelection, format Format, locale string) (*Artifact, error) {
	if format != FormatDocument && format != FormatSpreadsheet {
		return nil, fieldError(op, string(format), "format", ErrUnsupportedFormat)
	}
	if cols == nil {
		cols = append(ColumnSelection(nil), AllColumns...)
	}
	if len(cols) == 0 {
		return nil, fieldError(op, "", "columns", ErrInvalidColumn)
	}

	nf := NewNumberFormatter(locale, x.opts.DefaultLocale)
	job, err := x.newJob(format, nf.Locale())
	if err != nil {
		return nil, err
	}
	logger := x.app.Logger().With("job", job.Id, "format", string(format))

	art, err := x.render(ctx, op, job, ids, all, cols, format, nf)
	if err != nil {
		x.finishJob(job, JobFailed, "", "", err.Error())
		logger.Warn("export failed", "error", err)
		return nil, err
	}

	x.finishJob(job, JobSucceeded, art.Path, art.FileName, "")
	logger.Info("export succeeded",
		"sheets", art.Sheets,
		"stale", len(art.StaleSheets),
		"file", art.FileName,
	)
	return art, nil
}

func (x *Exporter) render(ctx context.Context, op string, job *core.Record, ids []string, all bool, cols ColumnSelection, format Format, nf *NumberFormatter) (*Artifact, error) {
	if all {
		sheets, err := x.agg.ListSheets()
		if err != nil {
			return nil, err
		}
		ids = ids[:0:0]
		for _, s := range sheets {
			ids = append(ids, s.ID)
		}
	}
	ids = dedupe(ids)

	info, err := currentProjectInfo(x.app)
	if err != nil {
		return nil, err
	}

	art := &Artifact{JobID: job.Id, StaleSheets: []string{}, Skipped: []string{}}
	generatedAt := x.now().Format("2006-01-02 15:04")

	var data []SheetExportData
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := x.agg.snapshot(id)
		if err != nil {
			// A missing sheet skips that sheet only when exporting many.
			if op == "ExportMany" && errors.Is(err, ErrSheetNotFound) {
				art.Skipped = append(art.Skipped, id)
				continue
			}
			return nil, err
		}
		d := newSheetExportData(snap, cols, info.Version, nf, generatedAt)
		if d.InfoStale() {
			art.StaleSheets = append(art.StaleSheets, id)
		}
		data = append(data, d)
	}
	if len(data) == 0 {
		return nil, newError(op, "", ErrNoSheetsSelected)
	}
	if all {
		sort.SliceStable(data, func(i, j int) bool {
			return data[i].Item.SectionNumber < data[j].Item.SectionNumber
		})
	}
	art.Sheets = len(data)

	job.Set("status", JobRendering)
	job.Set("sheet_count", len(data))
	if err := x.app.Save(job); err != nil {
		return nil, fmt.Errorf("update export job: %w", err)
	}

	var (
		payload func(w *artifactWriter) error
		ext     string
	)
	switch {
	case format == FormatSpreadsheet:
		ext = "xlsx"
		art.FileName = singleOrBundleName(data, "xlsx")
		payload = func(w *artifactWriter) error {
			b, err := GenerateWorkbook(data)
			if err != nil {
				return err
			}
			_, err = w.Write(b)
			return err
		}
	case len(data) == 1:
		ext = "pdf"
		art.FileName = singleOrBundleName(data, "pdf")
		payload = func(w *artifactWriter) error {
			b, err := GeneratePDF(data[0])
			if err != nil {
				return err
			}
			_, err = w.Write(b)
			return err
		}
	default:
		ext = "zip"
		art.FileName = singleOrBundleName(data, "zip")
		payload = func(w *artifactWriter) error {
			entries, err := x.renderDocuments(ctx, data)
			if err != nil {
				return err
			}
			return writeArchive(w, entries, x.now())
		}
	}
	art.ContentType = contentTypeFor(ext)

	w, err := newArtifactWriter(x.opts.Dir, ext)
	if err != nil {
		return nil, err
	}
	if err := payload(w); err != nil {
		w.Abort()
		return nil, renderError(op, err)
	}
	if err := ctx.Err(); err != nil {
		w.Abort()
		return nil, err
	}
	path, err := w.Commit()
	if err != nil {
		return nil, err
	}
	art.Path = path
	return art, nil
}

// renderDocuments renders one PDF per sheet in parallel, bounded by the
// configured worker count. Output order follows data.
func (x *Exporter) renderDocuments(ctx context.Context, data []SheetExportData) ([]archiveEntry, error) {
	entries := make([]archiveEntry, len(data))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.Workers)

	for i := range data {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := GeneratePDF(data[i])
			if err != nil {
				return fmt.Errorf("sheet %s: %w", data[i].Item.SectionNumber, err)
			}
			entries[i] = archiveEntry{
				Name: safeFileName("concentration-"+data[i].Item.SectionNumber) + ".pdf",
				Data: b,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (x *Exporter) newJob(format Format, locale string) (*core.Record, error) {
	col, err := x.app.FindCollectionByNameOrId(collections.ExportJobs)
	if err != nil {
		return nil, fmt.Errorf("export_jobs collection not found: %w", err)
	}
	r := core.NewRecord(col)
	r.Set("status", JobRequested)
	r.Set("format", string(format))
	r.Set("locale", locale)
	if err := x.app.Save(r); err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}
	return r, nil
}

func (x *Exporter) finishJob(r *core.Record, status, path, fileName, reason string) {
	r.Set("status", status)
	r.Set("artifact_path", path)
	r.Set("file_name", fileName)
	r.Set("reason", reason)
	if err := x.app.Save(r); err != nil {
		x.app.Logger().Error("update export job", "job", r.Id, "status", status, "error", err)
	}
}

// renderError keeps typed errors as they are and tags anything else as an
// export failure.
func renderError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: render: %w", op, err)
}

func jobFromRecord(r *core.Record) *ExportJob {
	return &ExportJob{
		ID:           r.Id,
		Status:       r.GetString("status"),
		Format:       Format(r.GetString("format")),
		Locale:       r.GetString("locale"),
		SheetCount:   r.GetInt("sheet_count"),
		FileName:     r.GetString("file_name"),
		Reason:       r.GetString("reason"),
		ArtifactPath: r.GetString("artifact_path"),
		Created:      r.GetDateTime("created").Time(),
		Updated:      r.GetDateTime("updated").Time(),
	}
}

func singleOrBundleName(data []SheetExportData, ext string) string {
	if len(data) == 1 {
		return safeFileName("concentration-"+data[0].Item.SectionNumber) + "." + ext
	}
	return "concentration-sheets." + ext
}

func contentTypeFor(ext string) string {
	switch ext {
	case "zip":
		return "application/zip"
	case "xlsx":
		return FormatSpreadsheet.ContentType()
	}
	return FormatDocument.ContentType()
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeFileName keeps letters, digits, dot, dash and underscore.
func safeFileName(s string) string {
	s = unsafeFileChars.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "export"
	}
	return s
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
