package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrlokans/notekeeper/internal/ai"
	"github.com/mrlokans/notekeeper/internal/cache"
	"github.com/mrlokans/notekeeper/internal/config"
	"github.com/mrlokans/notekeeper/internal/database"
	"github.com/mrlokans/notekeeper/internal/database/notes"
	"github.com/mrlokans/notekeeper/internal/database/tags"
	"github.com/mrlokans/notekeeper/internal/extract"
	"github.com/mrlokans/notekeeper/internal/importer"
	"github.com/mrlokans/notekeeper/internal/ocr"
)

// ImportCommand imports local documents into the notes database using the
// same pipeline the HTTP upload endpoint runs.
type ImportCommand struct {
	Paths        []string
	DatabasePath string
	GeminiAPIKey string
	GeminiModel  string
	Verbose      bool
	DryRun       bool
}

func NewImportCommand() *ImportCommand {
	return &ImportCommand{}
}

func (cmd *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the local database file")
	fs.StringVar(&cmd.GeminiAPIKey, "gemini-key", os.Getenv("GEMINI_API_KEY"), "Gemini API key for OCR and enrichment (optional)")
	fs.StringVar(&cmd.GeminiModel, "gemini-model", "gemini-2.0-flash", "Gemini model for OCR and enrichment")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "List what would be imported without making changes")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import [options] <file>...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import documents (txt, md, pdf, docx, images) as notes.\n\n")
		fmt.Fprintf(os.Stderr, "Files are processed in the given order. A file that fails is reported\n")
		fmt.Fprintf(os.Stderr, "and skipped; the rest of the batch keeps going.\n\n")
		fmt.Fprintf(os.Stderr, "Without -gemini-key, images are skipped and notes are created without\n")
		fmt.Fprintf(os.Stderr, "summaries or tags.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s import notes/*.md report.pdf\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s import -gemini-key $GEMINI_API_KEY scan.png\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd.Paths = fs.Args()
	if len(cmd.Paths) == 0 {
		return fmt.Errorf("no files given")
	}

	return nil
}

func (cmd *ImportCommand) Run() error {
	fmt.Println("Document Import")
	fmt.Println("===============")

	if cmd.DryRun {
		fmt.Println("DRY RUN MODE - No changes will be made")
		fmt.Println()
	}

	queued := make([]importer.QueuedFile, 0, len(cmd.Paths))
	for _, path := range cmd.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("file not found: %s", path)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory, pass files", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		queued = append(queued, importer.NewQueuedFile(filepath.Base(path), data))

		if cmd.Verbose {
			fmt.Printf("  -> %s (%d bytes)\n", path, len(data))
		}
	}

	fmt.Printf("Found %d file(s) to import\n", len(queued))

	if cmd.DryRun {
		fmt.Println("\nDry run complete. Use without -dry-run to import.")
		return nil
	}

	absDBPath, err := filepath.Abs(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for database: %w", err)
	}
	cmd.DatabasePath = absDBPath

	fmt.Printf("\nSaving to database: %s\n", cmd.DatabasePath)

	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	noteRepo := notes.NewRepository(db.DB)
	tagRepo := tags.NewRepository(db.DB)

	var ocrClient extract.OCRClient
	var enricher importer.Enricher
	if cmd.GeminiAPIKey != "" {
		ocrClient = ocr.NewGeminiClient(cmd.GeminiAPIKey, cmd.GeminiModel)
		enricher = ai.NewEnricher(ai.NewGeminiClient(cmd.GeminiAPIKey, cmd.GeminiModel), noteRepo, tagRepo)
	}

	pipeline := importer.NewPipeline(
		extract.New(ocrClient),
		importer.NewMaterializer(noteRepo, enricher),
		noteRepo,
		importer.NewStatusTracker(),
		cache.NewInvalidator(),
		nil,
	)

	fmt.Println("\nImporting documents...")

	result, err := pipeline.Run(context.Background(), 0, queued)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	var failed int
	for _, fr := range result.Files {
		switch fr.State {
		case importer.StateCompleted:
			if cmd.Verbose {
				if fr.NoteID != 0 {
					fmt.Printf("  [OK] %s -> note %d\n", fr.Name, fr.NoteID)
				} else {
					fmt.Printf("  [SKIP] %s: %s\n", fr.Name, fr.Message)
				}
			}
		case importer.StateError:
			failed++
			fmt.Printf("  [ERROR] %s: %s\n", fr.Name, fr.Message)
		}
	}

	fmt.Println("\n=== Import Summary ===")
	fmt.Printf("Notes created: %d/%d\n", result.NotesCreated, len(queued))
	if failed > 0 {
		fmt.Printf("Files failed: %d\n", failed)
	}

	fmt.Println("\nImport complete!")
	return nil
}
