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

	"github.com/custodia-labs/backsync/internal/core/domain"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources",
	Long: `Lists the sources defined in the configuration file together with
their kind, endpoint and entities.`,
	Args: cobra.NoArgs,
	RunE: runSourcesList,
}

var sourcesTokenCmd = &cobra.Command{
	Use:   "token <source>",
	Short: "Set the access token of a source",
	Long: `Prompts for the bearer token of a source and stores it in the
configuration file. The token is read without echo when stdin is a
terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: runSourcesToken,
}

func init() {
	sourcesCmd.AddCommand(sourcesTokenCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesList(cmd *cobra.Command, _ []string) error {
	svc, err := sourceService()
	if err != nil {
		return err
	}

	sources, err := svc.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing sources: %w", err)
	}
	if len(sources) == 0 {
		cmd.Println("No sources configured.")
		return nil
	}

	for _, src := range sources {
		cmd.Printf("%s (%s)\n", src.Name, src.Kind)
		cmd.Printf("  Endpoint: %s\n", endpoint(src))
		if names := entityNames(src); len(names) > 0 {
			cmd.Printf("  Entities: %s\n", strings.Join(names, ", "))
		}
		if src.Token != "" {
			cmd.Println("  Token:    set")
		}
	}
	return nil
}

func endpoint(src domain.Source) string {
	if src.Kind == domain.SourceGitHub {
		if src.BaseURL != "" {
			return src.BaseURL + " " + src.Repository
		}
		return "github.com/" + src.Repository
	}
	return src.BaseURL
}

func entityNames(src domain.Source) []string {
	if src.Kind == domain.SourceGitHub {
		return []string{"Issue", "Label", "User"}
	}
	names := make([]string, len(src.Entities))
	for i, e := range src.Entities {
		names[i] = e.Name
	}
	return names
}

func runSourcesToken(cmd *cobra.Command, args []string) error {
	svc, err := sourceService()
	if err != nil {
		return err
	}

	cmd.Printf("Token for %s: ", args[0])
	token := readSecret(cmd.InOrStdin())
	cmd.Println()
	if token == "" {
		return errors.New("no token entered")
	}

	if err := svc.SetToken(cmd.Context(), args[0], token); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	cmd.Printf("Token for %s saved.\n", args[0])
	return nil
}

// readSecret reads one line from in, without echo when in is a terminal.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readSecret(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(line)
}
