package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/users"
)

type createUserOptions struct {
	DatabasePath string
	Username     string
	Password     string
}

func newCreateUserCommand() *cobra.Command {
	opts := &createUserOptions{}

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a library account",
		Long: `Create a library account without going through the web form.
The password is read from the terminal without echo unless --password is given.`,
		Example: `  librarian create-user --username alice
  librarian create-user --username alice --db ./data/library.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Password == "" {
				password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				opts.Password = password
			}
			return runCreateUser(opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.DatabasePath, "db", config.NewConfig().Database.Path, "path to the library database")
	cmd.Flags().StringVarP(&opts.Username, "username", "u", "", "username for the new account (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (prompted for when omitted)")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func runCreateUser(opts *createUserOptions, out io.Writer) error {
	db, err := database.NewDatabase(opts.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := config.NewConfig().Auth
	service := auth.NewService(users.NewRepository(db.DB), cfg)

	user, err := service.Register(opts.Username, opts.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return fmt.Errorf("user %q already exists", strings.TrimSpace(opts.Username))
		}
		return err
	}

	fmt.Fprintf(out, "Created user %q (id %d)\n", user.Username, user.ID)
	return nil
}

// readPassword prompts twice on a terminal. Piped input is read as a single
// line so scripts can feed the password on stdin.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		fmt.Fprint(prompt, "Confirm password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
