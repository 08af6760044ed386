package coretools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/harun/mcplink/pkg/toolserver"
)

// Options configures core tool registration.
type Options struct {
	// WorkspaceRoot confines path arguments when set. Relative paths resolve against it.
	WorkspaceRoot string
}

// ToolRegistrar accepts tool definitions.
type ToolRegistrar interface {
	RegisterTools(defs ...toolserver.ToolDefinition) error
}

// CommonTools returns the built-in system and filesystem tools.
func CommonTools(opts Options) []toolserver.ToolDefinition {
	return []toolserver.ToolDefinition{
		systemInfoTool(),
		fileInfoTool(opts),
		listDirectoryTool(opts),
	}
}

// RegisterCommonTools registers CommonTools on registrar.
func RegisterCommonTools(registrar ToolRegistrar, opts Options) error {
	if registrar == nil {
		return errors.New("tool registrar is required")
	}
	if err := registrar.RegisterTools(CommonTools(opts)...); err != nil {
		return fmt.Errorf("failed to register common tools: %w", err)
	}
	return nil
}

func systemInfoTool() toolserver.ToolDefinition {
	return toolserver.ToolDefinition{
		Name:        "get_system_info",
		Description: "Get system information",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get working directory: %w", err)
			}
			hostname, _ := os.Hostname()
			return map[string]interface{}{
				"os":                runtime.GOOS,
				"architecture":      runtime.GOARCH,
				"go_version":        runtime.Version(),
				"num_cpu":           runtime.NumCPU(),
				"hostname":          hostname,
				"current_directory": cwd,
			}, nil
		},
	}
}

func fileInfoTool(opts Options) toolserver.ToolDefinition {
	return toolserver.ToolDefinition{
		Name:        "get_file_info",
		Description: "Get file information",
		Parameters: []toolserver.ToolParameter{
			{Name: "file_path", Type: "string", Description: "The path of the file to inspect", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			raw, _ := params["file_path"].(string)
			path, err := resolvePath(opts.WorkspaceRoot, raw)
			if err != nil {
				return nil, err
			}

			info, err := os.Stat(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("file not found: %s", raw)
				}
				return nil, err
			}

			return map[string]interface{}{
				"file_path":     raw,
				"size":          info.Size(),
				"is_directory":  info.IsDir(),
				"is_file":       info.Mode().IsRegular(),
				"last_modified": float64(info.ModTime().UnixNano()) / 1e9,
			}, nil
		},
	}
}

func listDirectoryTool(opts Options) toolserver.ToolDefinition {
	return toolserver.ToolDefinition{
		Name:        "list_directory_contents",
		Description: "List the contents of a directory.",
		Parameters: []toolserver.ToolParameter{
			{Name: "directory_path", Type: "string", Description: "The path of the directory to list", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			raw, _ := params["directory_path"].(string)
			path, err := resolvePath(opts.WorkspaceRoot, raw)
			if err != nil {
				return nil, err
			}

			entries, err := os.ReadDir(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("directory not found: %s", raw)
				}
				return nil, err
			}

			contents := make([]string, 0, len(entries))
			for _, entry := range entries {
				contents = append(contents, entry.Name())
			}
			return map[string]interface{}{
				"directory": raw,
				"contents":  contents,
			}, nil
		},
	}
}

func resolvePath(workspaceRoot string, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", fmt.Errorf("path is required")
	}
	if strings.Contains(pathValue, "://") {
		return "", fmt.Errorf("path must be a local file")
	}

	workspaceRoot = strings.TrimSpace(workspaceRoot)
	if workspaceRoot == "" {
		return filepath.Clean(pathValue), nil
	}
	workspaceRoot = filepath.Clean(workspaceRoot)

	candidate := pathValue
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(workspaceRoot, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(workspaceRoot, candidate)
	if err != nil {
		return "", err
	}
	if rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..") {
		return candidate, nil
	}
	return "", fmt.Errorf("path %q is outside workspace root", pathValue)
}
