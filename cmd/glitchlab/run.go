package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glitchlab/glitchlab/pkg/config"
	"github.com/glitchlab/glitchlab/pkg/controller"
	"github.com/glitchlab/glitchlab/pkg/glitchlog"
	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/llm/openai"
	"github.com/glitchlab/glitchlab/pkg/reporter"
	"github.com/glitchlab/glitchlab/pkg/types"
)

// stdinConfirmer prompts the human operator on stdin/stdout for each gate
// the Controller pauses on. It implements controller.Confirmer.
type stdinConfirmer struct {
	in *bufio.Reader
}

func (s *stdinConfirmer) Confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, _ := s.in.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}

func runCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("run")
	repoPath := fs.String("repo", ".", "path to the target repository")
	taskPath := fs.String("task", "", "path to a task YAML file (required)")
	configPath := fs.String("config", "", "path to glitchlab.yaml (default: <repo>/glitchlab.yaml)")
	allowCore := fs.Bool("allow-core", false, "allow changes to protected/core paths")
	autoApprove := fs.Bool("auto-approve", false, "skip every human-confirmation gate")
	testCommand := fs.String("test-command", "", "shell command the fix loop runs to validate changes")
	model := fs.String("model", "", "override the configured LLM model")
	apiKey := fs.String("api-key", os.Getenv("OPENAI_API_KEY"), "OpenAI-compatible API key")
	baseURL := fs.String("base-url", os.Getenv("OPENAI_BASE_URL"), "OpenAI-compatible API base URL")
	jsonOut := fs.Bool("json", false, "print the Result as JSON on stdout instead of styled progress")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *taskPath == "" {
		return fmt.Errorf("--task is required")
	}

	cfg, err := loadConfigFor(*repoPath, *configPath)
	if err != nil {
		return err
	}
	if *model != "" {
		cfg.Model = *model
	}

	provider, err := buildProvider(cfg, *apiKey, *baseURL)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*taskPath)
	if err != nil {
		return fmt.Errorf("reading task file: %w", err)
	}
	task, err := types.LoadTaskFile(data)
	if err != nil {
		return fmt.Errorf("parsing task file: %w", err)
	}

	opts := []controller.Option{controller.WithTestCommand(*testCommand)}
	if *jsonOut {
		opts = append(opts, controller.WithLogger(glitchlog.NewTo(glitchlog.Quiet, os.Stderr)))
	} else {
		opts = append(opts,
			controller.WithReporter(reporter.New(os.Stdout)),
			controller.WithConfirmer(&stdinConfirmer{in: bufio.NewReader(os.Stdin)}),
		)
	}

	ctrl, err := controller.New(*repoPath, cfg, provider, *allowCore, *autoApprove, opts...)
	if err != nil {
		return fmt.Errorf("building controller: %w", err)
	}

	result, runErr := ctrl.Run(ctx, task)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	} else {
		fmt.Printf("\n%s: %s\n", result.TaskID, result.Status)
		if result.PRURL != "" {
			fmt.Printf("PR: %s\n", result.PRURL)
		}
	}

	return runErr
}

func loadConfigFor(repoPath, configPath string) (*config.Settings, error) {
	if configPath == "" {
		configPath = filepath.Join(repoPath, "glitchlab.yaml")
	}
	return config.Load(configPath)
}

func buildProvider(cfg *config.Settings, apiKey, baseURL string) (llm.Provider, error) {
	var opts []openai.Option
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return openai.New(apiKey, opts...)
}
