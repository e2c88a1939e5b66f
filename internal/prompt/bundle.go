package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/veighnsche/ralph/internal/rerr"
)

// Bundle is a process-scoped directory holding one executable wrapper
// script per McpTool plus the mcp_config.json an agent adapter's
// --mcp-config flag points at.
type Bundle struct {
	Dir        string
	ConfigPath string
}

type mcpServerEntry struct {
	Command string `json:"command"`
}

type mcpConfigFile struct {
	McpServers map[string]mcpServerEntry `json:"mcpServers"`
}

// BuildBundle writes a fresh Bundle under os.TempDir()/ralph-mcp-<pid> for
// the tools a Recipe grants, wiring each tool's wrapper to invoke
// toolBinary against dbPath. The caller is responsible for removing Dir
// once the iteration's agent session has exited.
func BuildBundle(toolBinary, dbPath string, tools []McpTool) (*Bundle, error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("ralph-mcp-%d-", os.Getpid()))
	if err != nil {
		return nil, rerr.New(rerr.CodeFilesystem, "create mcp bundle dir: %v", err)
	}

	cfg := mcpConfigFile{McpServers: map[string]mcpServerEntry{}}
	for _, tool := range tools {
		scriptPath := filepath.Join(dir, string(tool)+".sh")
		script := fmt.Sprintf("#!/bin/sh\nexec %q --tool %q --db %q\n", toolBinary, string(tool), dbPath)
		if err := os.WriteFile(scriptPath, []byte(script), 0o700); err != nil {
			return nil, rerr.New(rerr.CodeFilesystem, "write mcp tool script: %v", err)
		}
		cfg.McpServers[string(tool)] = mcpServerEntry{Command: scriptPath}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, rerr.New(rerr.CodeInternal, "marshal mcp config: %v", err)
	}
	configPath := filepath.Join(dir, "mcp_config.json")
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return nil, rerr.New(rerr.CodeFilesystem, "write mcp config: %v", err)
	}

	return &Bundle{Dir: dir, ConfigPath: configPath}, nil
}

// Cleanup removes the bundle's temp directory.
func (b *Bundle) Cleanup() error {
	if b == nil || b.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(b.Dir); err != nil {
		return rerr.New(rerr.CodeFilesystem, "remove mcp bundle %s: %v", b.Dir, err)
	}
	return nil
}
