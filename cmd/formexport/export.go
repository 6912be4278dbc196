package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/JonMunkholm/formbridge/internal/config"
	"github.com/JonMunkholm/formbridge/internal/core"
	"github.com/JonMunkholm/formbridge/internal/database"
	"github.com/JonMunkholm/formbridge/internal/export"
	"github.com/JonMunkholm/formbridge/internal/odata"
	"github.com/JonMunkholm/formbridge/internal/xform"
	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
)

var errNeedSchema = errors.New("json export needs --form or --template")

func getCSVCmd(opts *options) *cobra.Command {
	return exportCmd(opts, core.FormatCSV, "csv", "Writes a flat CSV export")
}

func getZipCmd(opts *options) *cobra.Command {
	return exportCmd(opts, core.FormatZip, "zip", "Writes a multi-table ZIP export")
}

func getJSONCmd(opts *options) *cobra.Command {
	return exportCmd(opts, core.FormatJSON, "json", "Writes an OData JSON Records collection")
}

func exportCmd(opts *options, format core.Format, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [submission.xml...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), opts, format, args, cmd.OutOrStdout())
		},
	}
}

// runExport writes one export of files to --out or stdout. A failed export
// to --out leaves no file behind.
func runExport(ctx context.Context, opts *options, format core.Format, files []string, stdout io.Writer) (err error) {
	out := stdout
	if opts.out != "" {
		f, createErr := os.Create(opts.out)
		if createErr != nil {
			return fmt.Errorf("create output: %w", createErr)
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
			if err != nil {
				os.Remove(opts.out)
			}
		}()
		out = f
	}

	if opts.form != "" {
		return exportWithDefinition(ctx, opts, format, files, out)
	}
	return exportInferred(opts, format, files, out)
}

// exportWithDefinition loads the form and submissions into an in-memory
// store and runs the same export path as the server.
func exportWithDefinition(ctx context.Context, opts *options, format core.Format, files []string, out io.Writer) error {
	limit := opts.maxSize.bytes()
	definition, err := readDocument(opts.form, limit)
	if err != nil {
		return err
	}

	cfg := &config.Config{
		Export:     config.ExportConfig{MaxConcurrent: 1, MaxWaitTime: time.Second},
		Submission: config.SubmissionConfig{MaxBodySize: datasize.ByteSize(opts.maxSize)},
	}
	svc := core.NewService(database.NewMemory(), cfg)

	form, err := svc.SaveForm(ctx, definition)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.form, err)
	}

	// Exports run newest first, so the last file is stored first.
	for i := len(files) - 1; i >= 0; i-- {
		doc, err := readDocument(files[i], limit)
		if err != nil {
			return err
		}
		sub, err := svc.SaveSubmission(ctx, doc)
		if err != nil {
			return fmt.Errorf("%s: %w", files[i], err)
		}
		if sub.FormID != form.UID {
			slog.Warn("skipping submission of another form",
				"file", files[i],
				"form_id", sub.FormID,
				"want", form.UID,
			)
		}
	}

	page := core.Page{Skip: opts.skip}
	if opts.top >= 0 {
		top := opts.top
		page.Top = &top
	}

	res, err := svc.Export(ctx, core.ExportRequest{
		FormID:     form.UID,
		Format:     format,
		Page:       page,
		Count:      opts.count,
		ContextURL: odata.ContextURL(opts.baseURL, form.UID, odata.RecordsSet),
	}, out)
	if err != nil {
		return err
	}
	slog.Info("export written", "rows", res.Rows, "bytes", res.Bytes)
	return nil
}

// exportInferred exports without a form definition, taking the schema from
// --template or from the first submission.
func exportInferred(opts *options, format core.Format, files []string, out io.Writer) error {
	limit := opts.maxSize.bytes()
	total := int64(len(files))
	files = pageFiles(files, opts.skip, opts.top)

	var (
		src      = export.FirstRow()
		schema   *xform.Schema
		rootName = "export"
		template []byte
	)
	if opts.template != "" {
		doc, err := readDocument(opts.template, limit)
		if err != nil {
			return err
		}
		template = doc
		src = export.TemplateInstance(doc)
	}

	// The zip root table and the JSON context are named after the form the
	// submissions belong to.
	if first := template; first != nil || len(files) > 0 {
		if first == nil {
			doc, err := readDocument(files[0], limit)
			if err != nil {
				return err
			}
			first = doc
		}
		if h, err := xform.ParseSubmissionHeader(first); err == nil {
			rootName = h.FormID
		}
	}
	if opts.name != "" {
		rootName = opts.name
	}

	var exp export.Exporter
	var err error
	switch format {
	case core.FormatZip:
		exp, err = export.NewMultiTable(out, rootName, src)
	case core.FormatJSON:
		if template == nil {
			return errNeedSchema
		}
		if schema, err = xform.InferSchema(template); err != nil {
			return fmt.Errorf("%s: %w", opts.template, err)
		}
		jsonOpts := []export.ODataJSONOption{export.WithLogger(slog.Default())}
		if opts.count {
			jsonOpts = append(jsonOpts, export.WithCount(total))
		}
		exp = export.NewODataJSON(out, schema, odata.ContextURL(opts.baseURL, rootName, odata.RecordsSet), jsonOpts...)
	default:
		exp, err = export.NewFlatCSV(out, src)
	}
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := writeFile(exp, file, limit); err != nil {
			exp.Abort()
			return err
		}
	}
	return exp.Close()
}

func writeFile(exp export.Exporter, file string, limit int64) error {
	doc, err := readDocument(file, limit)
	if err != nil {
		return err
	}
	h, err := xform.ParseSubmissionHeader(doc)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", file, xform.ErrMalformedSubmission, err)
	}
	if err := exp.WriteRow(xform.Row{FormID: h.FormID, InstanceID: h.InstanceID, XML: doc}); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	return nil
}

// pageFiles applies --skip and --top to the submission list.
func pageFiles(files []string, skip, top int64) []string {
	if skip < 0 {
		skip = 0
	}
	if skip >= int64(len(files)) {
		return nil
	}
	files = files[skip:]
	if top >= 0 && top < int64(len(files)) {
		files = files[:top]
	}
	return files
}

func readDocument(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := core.ReadDocument(f, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
