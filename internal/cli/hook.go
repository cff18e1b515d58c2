package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	hookName        = "pre-push"
	hookMarkerStart = "# >>> tribunal pre-push hook >>>"
	hookMarkerEnd   = "# <<< tribunal pre-push hook <<<"
)

var (
	hookFailOn string
	hookFormat string
	hookBase   string
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the git pre-push hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install tribunal as a git pre-push hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := getHookPath()
		if err != nil {
			fail(ExitRuntimeError, "%v", err)
			return nil
		}

		section := generateHookScript(hookFailOn, hookFormat, hookBase)

		existing, err := os.ReadFile(hookPath)
		if err != nil && !os.IsNotExist(err) {
			fail(ExitRuntimeError, "reading hook file: %v", err)
			return nil
		}

		var content string
		if os.IsNotExist(err) || len(existing) == 0 {
			content = "#!/bin/sh\n" + section
		} else {
			content = replaceHookSection(string(existing), section)
		}

		if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
			fail(ExitRuntimeError, "creating hooks directory: %v", err)
			return nil
		}

		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			fail(ExitRuntimeError, "writing hook file: %v", err)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Installed tribunal %s hook at %s\n", hookName, hookPath)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the tribunal pre-push hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := getHookPath()
		if err != nil {
			fail(ExitRuntimeError, "%v", err)
			return nil
		}

		existing, err := os.ReadFile(hookPath)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s hook found.\n", hookName)
				return nil
			}
			fail(ExitRuntimeError, "reading hook file: %v", err)
			return nil
		}

		content := removeHookSection(string(existing))

		// Only a shebang left: the hook was ours alone.
		trimmed := strings.TrimSpace(content)
		if trimmed == "" || trimmed == "#!/bin/sh" || trimmed == "#!/bin/bash" {
			if err := os.Remove(hookPath); err != nil {
				fail(ExitRuntimeError, "removing hook file: %v", err)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed tribunal %s hook at %s\n", hookName, hookPath)
			return nil
		}

		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			fail(ExitRuntimeError, "writing hook file: %v", err)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed tribunal section from %s\n", hookPath)
		return nil
	},
}

func getHookPath() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--git-path", "hooks").Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository (git rev-parse --git-path hooks failed)")
	}
	return filepath.Join(strings.TrimSpace(string(out)), hookName), nil
}

func generateHookScript(failOn, format, base string) string {
	args := fmt.Sprintf("--fail-on %s --format %s", failOn, format)
	if base != "" {
		args += " --base " + base
	}
	var b strings.Builder
	b.WriteString(hookMarkerStart + "\n")
	b.WriteString("tribunal review HEAD " + args + "\n")
	b.WriteString("TRIBUNAL_EXIT=$?\n")
	b.WriteString("if [ $TRIBUNAL_EXIT -eq 1 ]; then\n")
	fmt.Fprintf(&b, "  echo \"tribunal: %s or worse findings, push blocked\"\n", failOn)
	b.WriteString("  exit 1\n")
	b.WriteString("elif [ $TRIBUNAL_EXIT -ge 2 ]; then\n")
	b.WriteString("  echo \"tribunal: review could not run (exit $TRIBUNAL_EXIT), allowing push\"\n")
	b.WriteString("fi\n")
	b.WriteString(hookMarkerEnd + "\n")
	return b.String()
}

func replaceHookSection(existing, section string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)

	if startIdx == -1 || endIdx == -1 {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}

	before := existing[:startIdx]
	after := existing[endIdx+len(hookMarkerEnd):]
	after = strings.TrimPrefix(after, "\n")
	return before + section + after
}

func removeHookSection(existing string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)

	if startIdx == -1 || endIdx == -1 {
		return existing
	}

	before := existing[:startIdx]
	after := existing[endIdx+len(hookMarkerEnd):]
	after = strings.TrimPrefix(after, "\n")

	return before + after
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookInstallCmd.Flags().StringVar(&hookFailOn, "fail-on", "major", "Block the push on findings at or above severity")
	hookInstallCmd.Flags().StringVar(&hookFormat, "format", "text", "Output format (text, json, markdown, sarif)")
	hookInstallCmd.Flags().StringVar(&hookBase, "base", "", "Base branch (default from config)")
}
