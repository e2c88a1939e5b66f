package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veighnsche/ralph/internal/agentmd"
	"github.com/veighnsche/ralph/internal/config"
	"github.com/veighnsche/ralph/internal/scanner"
	"github.com/veighnsche/ralph/internal/skills"
	"github.com/veighnsche/ralph/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Create the .ralph layout and seed defaults for a project",
	Long: `init lays out the .ralph/ directory a project needs: the Store
database, a per-subsystem Journal directory, a generated project-context
file, and a default external_services.json. Re-running against an
existing project refreshes CLAUDE.RALPH.md without touching the database
or config.

Example:
  ralph init ./myproject
  ralph init ./myproject --greenfield`,
	Args: cobra.ExactArgs(1),
	RunE: initProject,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("greenfield", false, "skip scanning, write a minimal CLAUDE.RALPH.md for a new project")
	initCmd.Flags().Bool("force", false, "overwrite an existing external_services.json")
	initCmd.Flags().String("embedder-url", "http://localhost:8080/v1/embeddings", "default embedder.api_url")
}

func initProject(cmd *cobra.Command, args []string) error {
	rootDir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}

	force, _ := cmd.Flags().GetBool("force")
	greenfield, _ := cmd.Flags().GetBool("greenfield")
	embedderURL, _ := cmd.Flags().GetString("embedder-url")

	ralphDir := filepath.Join(rootDir, agentmd.RalphDir)
	if err := os.MkdirAll(filepath.Join(ralphDir, "db", "memory"), 0o755); err != nil {
		return fmt.Errorf("create .ralph layout: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(ralphDir, "prompts"), 0o755); err != nil {
		return fmt.Errorf("create .ralph layout: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(ralphDir, "images", "disciplines"), 0o755); err != nil {
		return fmt.Errorf("create .ralph layout: %w", err)
	}

	dbPath := filepath.Join(ralphDir, "db", "ralph.db")
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()
	fmt.Printf("Store ready at %s\n", dbPath)

	if err := generateProjectContext(rootDir, greenfield); err != nil {
		return fmt.Errorf("generate %s: %w", agentmd.AgentMDFile, err)
	}

	if err := seedExternalServices(rootDir, embedderURL, force); err != nil {
		return fmt.Errorf("seed external_services.json: %w", err)
	}

	if err := skills.InstallProjectSkills(rootDir, force); err != nil {
		return fmt.Errorf("install skills: %w", err)
	}
	fmt.Println("Installed Claude Code skills to .claude/skills/")

	checkCLIAvailability()
	printNextSteps(rootDir)

	return nil
}

func generateProjectContext(rootDir string, greenfield bool) error {
	gen, err := agentmd.NewGenerator()
	if err != nil {
		return err
	}

	if greenfield {
		content := gen.GenerateGreenfield(filepath.Base(rootDir))
		ralphDir := filepath.Join(rootDir, agentmd.RalphDir)
		agentMDPath := filepath.Join(ralphDir, agentmd.AgentMDFile)
		if err := os.WriteFile(agentMDPath, []byte(content), 0o644); err != nil {
			return err
		}
		fmt.Printf("Created %s (greenfield template)\n", agentMDPath)
		return nil
	}

	s := scanner.New(rootDir)
	info, err := s.Scan()
	if err != nil {
		return fmt.Errorf("scan project: %w", err)
	}

	if err := gen.WriteToProject(rootDir, info); err != nil {
		return err
	}
	fmt.Printf("Created %s\n", filepath.Join(agentmd.RalphDir, agentmd.AgentMDFile))
	return nil
}

func seedExternalServices(rootDir, embedderURL string, force bool) error {
	path := filepath.Join(rootDir, "external_services.json")
	if _, err := os.Stat(path); err == nil && !force {
		fmt.Printf("%s already exists (use --force to overwrite)\n", path)
		return nil
	}

	cfg := config.ExternalServices{
		Version: 1,
		Embedder: config.EmbedderConfig{
			APIURL:         embedderURL,
			EmbeddingModel: "text-embedding-3-small",
			EmbeddingDims:  1536,
			LLMModel:       "",
			LLMTemperature: 0.2,
		},
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return err
	}
	fmt.Printf("Created %s\n", path)
	return nil
}

func checkCLIAvailability() {
	if _, err := exec.LookPath("ralph"); err == nil {
		return
	}

	fmt.Println()
	fmt.Println("Note: 'ralph' is not in your PATH.")

	gopath := os.Getenv("GOPATH")
	if gopath == "" {
		gopath = filepath.Join(os.Getenv("HOME"), "go")
	}
	gobin := os.Getenv("GOBIN")
	if gobin == "" {
		gobin = filepath.Join(gopath, "bin")
	}

	ralphBin := filepath.Join(gobin, "ralph")
	if _, err := os.Stat(ralphBin); err == nil {
		shell := detectShell()
		shellConfig := getShellConfig(shell)

		fmt.Printf("Found ralph at: %s\n", ralphBin)
		fmt.Println()
		fmt.Println("To add it to your PATH, add this to your shell config:")
		fmt.Printf("  echo 'export PATH=\"%s:$PATH\"' >> %s\n", gobin, shellConfig)
	} else {
		fmt.Println("Install ralph globally with:")
		fmt.Println("  go install github.com/veighnsche/ralph/cmd/ralph@latest")
	}
}

func detectShell() string {
	shell := os.Getenv("SHELL")
	if strings.Contains(shell, "zsh") {
		return "zsh"
	}
	if strings.Contains(shell, "fish") {
		return "fish"
	}
	return "bash"
}

func getShellConfig(shell string) string {
	home := os.Getenv("HOME")
	switch shell {
	case "zsh":
		return filepath.Join(home, ".zshrc")
	case "fish":
		return filepath.Join(home, ".config", "fish", "config.fish")
	default:
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".bash_profile")
		}
		return filepath.Join(home, ".bashrc")
	}
}

func printNextSteps(rootDir string) {
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Point external_services.json at a real embedding endpoint")
	fmt.Println("  2. Create a Subsystem and Discipline via the MCP tools or store package")
	fmt.Printf("  3. Run 'ralph run --project %s' to start iterating\n", rootDir)
}
