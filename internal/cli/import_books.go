package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/entities"
)

// BookCreator adds one book to the catalogue.
type BookCreator interface {
	CreateBook(title string) (*entities.Book, error)
}

type importBooksOptions struct {
	DatabasePath string
	DryRun       bool
	Verbose      bool
}

// ImportResult summarises an import run.
type ImportResult struct {
	Imported int
	Skipped  int
}

func newImportBooksCommand() *cobra.Command {
	opts := &importBooksOptions{}

	cmd := &cobra.Command{
		Use:   "import-books <file>",
		Short: "Donate every title listed in a file, one per line",
		Long: `Donate every title listed in a text file, one title per line.
Blank lines and lines starting with # are ignored. Use - to read from stdin.`,
		Example: `  librarian import-books titles.txt
  cat titles.txt | librarian import-books - --dry-run --verbose`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			var store BookCreator = dryRunStore{}
			if !opts.DryRun {
				db, err := database.NewDatabase(opts.DatabasePath)
				if err != nil {
					return err
				}
				defer db.Close()
				store = books.NewRepository(db.DB)
			}

			result, err := ImportBooks(in, store, cmd.OutOrStdout(), opts.Verbose)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d books, skipped %d\n", result.Imported, result.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.DatabasePath, "db", config.NewConfig().Database.Path, "path to the library database")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate titles without writing to the database")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print every title as it is imported")

	return cmd
}

// ImportBooks donates each title read from r. Invalid titles are reported
// and skipped; any other error stops the import.
func ImportBooks(r io.Reader, store BookCreator, out io.Writer, verbose bool) (ImportResult, error) {
	var result ImportResult

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		title := strings.TrimSpace(scanner.Text())
		if title == "" || strings.HasPrefix(title, "#") {
			continue
		}

		book, err := store.CreateBook(title)
		if err != nil {
			if errors.Is(err, books.ErrTitleTooLong) || errors.Is(err, books.ErrTitleRequired) {
				fmt.Fprintf(out, "line %d: skipped: %v\n", lineNo, err)
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("line %d: %w", lineNo, err)
		}

		result.Imported++
		if verbose {
			fmt.Fprintf(out, "  + %s\n", book.Title)
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read titles: %w", err)
	}

	return result, nil
}

// dryRunStore validates titles the same way the repository does.
type dryRunStore struct{}

func (dryRunStore) CreateBook(title string) (*entities.Book, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, books.ErrTitleRequired
	}
	if len([]rune(title)) > books.MaxTitleLength {
		return nil, books.ErrTitleTooLong
	}
	return &entities.Book{Title: title}, nil
}
