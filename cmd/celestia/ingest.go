package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/LetsFonseca/CelestiAI/internal/parser"
	"github.com/LetsFonseca/CelestiAI/internal/source"
)

var errNoInputMode = errors.New("ingest needs one input: --text-file FILE, --pdf-path FILE or --stdin")

func ingestCmd(root *rootOptions) *cobra.Command {
	var (
		textFile   string
		pdfPath    string
		stdin      bool
		collection string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and store one document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			if collection != "" {
				cfg.SetCollection(collection)
			}
			log, err := newLogger(cfg, "stderr")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			reg := parser.Default()
			if pdfPath != "" {
				if _, err := reg.Lookup("pdf"); err != nil {
					return err
				}
			}

			var doc source.Document
			switch {
			case textFile != "":
				doc, err = source.TextFile(textFile)
			case pdfPath != "":
				doc, err = source.Parsed(ctx, reg, "pdf", pdfPath)
			case stdin:
				doc, err = source.Reader(cmd.InOrStdin(), source.StdinName)
			default:
				return errNoInputMode
			}
			if err != nil {
				return err
			}

			report, err := a.svc.Ingest(ctx, doc)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report, cfg.Collection())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&textFile, "text-file", "", "UTF-8 text file to ingest")
	f.StringVar(&pdfPath, "pdf-path", "", "PDF file to ingest")
	f.BoolVar(&stdin, "stdin", false, "read the document from standard input")
	f.StringVar(&collection, "collection", "", "target collection (default from config)")
	cmd.MarkFlagsMutuallyExclusive("text-file", "pdf-path", "stdin")
	cmd.MarkFlagsOneRequired("text-file", "pdf-path", "stdin")
	return cmd
}
