package main

import (
	"log/slog"

	"github.com/JonMunkholm/formbridge/internal/logging"
	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
)

// options are the flags shared by every export subcommand.
type options struct {
	form     string
	template string
	out      string
	name     string
	baseURL  string
	top      int64
	skip     int64
	count    bool
	maxSize  byteSizeFlag
	logLevel string
}

func getRootCmd() *cobra.Command {
	opts := &options{maxSize: byteSizeFlag(10 * datasize.MB)}

	rootCmd := &cobra.Command{
		Use:   "formexport",
		Short: "Exports XForms submissions to CSV, ZIP or OData JSON",
		Long: `formexport reads a form definition and a set of submission files and
writes one export to stdout or --out.

Subcommands:
  - csv:  one flat CSV, repeats left out
  - zip:  one CSV per table, repeats joined back by key columns
  - json: an OData 4.0 Records collection with nested repeats

The schema comes from --form when given. Without it, csv and zip infer the
schema from --template, or from the first submission, and json requires
--template.

Submissions are written in the order given on the command line.

Examples:
  formexport csv --form household.xml submissions/*.xml > households.csv
  formexport zip --form household.xml --out households.csv.zip submissions/*.xml
  formexport json --template sample.xml --top 100 submissions/*.xml`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Exports go to stdout, so logs go to stderr.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), opts.logLevel, "text"))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.form, "form", "", "form definition XML")
	flags.StringVar(&opts.template, "template", "", "submission XML to infer the schema from")
	flags.StringVarP(&opts.out, "out", "o", "", "output file (default: stdout)")
	flags.StringVar(&opts.name, "name", "", "form id used for the zip root table and json context when --form is not given")
	flags.StringVar(&opts.baseURL, "base-url", "", "service root used in @odata.context")
	flags.Int64Var(&opts.top, "top", -1, "write at most this many submissions (-1: all)")
	flags.Int64Var(&opts.skip, "skip", 0, "skip this many submissions first")
	flags.BoolVar(&opts.count, "count", false, "add @odata.count to json output")
	flags.Var(&opts.maxSize, "max-size", "largest accepted document")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug/info/warn/error)")

	rootCmd.Flags().BoolP("version", "V", false, "version for formexport")

	rootCmd.AddCommand(getCSVCmd(opts))
	rootCmd.AddCommand(getZipCmd(opts))
	rootCmd.AddCommand(getJSONCmd(opts))

	return rootCmd
}

// byteSizeFlag lets --max-size take values like 512KB or 10MB.
type byteSizeFlag datasize.ByteSize

func (b *byteSizeFlag) String() string {
	return datasize.ByteSize(*b).HR()
}

func (b *byteSizeFlag) Set(s string) error {
	var v datasize.ByteSize
	if err := v.UnmarshalText([]byte(s)); err != nil {
		return err
	}
	*b = byteSizeFlag(v)
	return nil
}

func (b *byteSizeFlag) Type() string {
	return "size"
}

func (b byteSizeFlag) bytes() int64 {
	return int64(datasize.ByteSize(b).Bytes())
}
