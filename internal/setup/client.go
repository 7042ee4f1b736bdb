package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/offline-triage-engine/internal/config"
)

// DefaultServerName is the key the tool server is registered under.
const DefaultServerName = "offline-triage"

// ClientConfig is the mcpServers document read by desktop MCP clients.
// Keys other than mcpServers are preserved on save.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`

	extra map[string]json.RawMessage
}

// ServerEntry launches one MCP server.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// InstallOptions controls Install.
type InstallOptions struct {
	// ConfigPath is the client config file; DefaultClientConfigPath when empty.
	ConfigPath string
	// ServerName defaults to DefaultServerName.
	ServerName string
	// BinaryPath defaults to the running executable.
	BinaryPath string
	// TriageConfig is passed to the server with --config when set.
	TriageConfig string
	// DataDir is exported as TRIAGE_DATA_DIR when set.
	DataDir string
}

// DefaultClientConfigPath returns the per-user desktop client config file.
func DefaultClientConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads the client config. A missing file is an empty config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: make(map[string]ServerEntry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if servers, ok := raw["mcpServers"]; ok {
		if err := json.Unmarshal(servers, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		if cfg.MCPServers == nil {
			cfg.MCPServers = make(map[string]ServerEntry)
		}
		delete(raw, "mcpServers")
	}
	cfg.extra = raw
	return cfg, nil
}

// SaveClientConfig writes cfg to path, creating the directory if needed.
func SaveClientConfig(path string, cfg *ClientConfig) error {
	if err := config.EnsureParentDir(path); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	doc := make(map[string]any, len(cfg.extra)+1)
	for k, v := range cfg.extra {
		doc[k] = v
	}
	doc["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Install adds or replaces the triage tool server entry and returns it.
func Install(opts InstallOptions) (*ServerEntry, error) {
	opts, err := resolveInstallOptions(opts)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadClientConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	entry := ServerEntry{
		Command: opts.BinaryPath,
		Args:    []string{"mcp"},
	}
	if opts.TriageConfig != "" {
		abs, err := filepath.Abs(opts.TriageConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		entry.Args = append(entry.Args, "--config", abs)
	}
	if opts.DataDir != "" {
		entry.Env = map[string]string{config.DataDirEnv: opts.DataDir}
	}

	cfg.MCPServers[opts.ServerName] = entry
	if err := SaveClientConfig(opts.ConfigPath, cfg); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Uninstall removes the entry and reports whether one was present.
func Uninstall(configPath, serverName string) (bool, error) {
	configPath, serverName, err := resolveTarget(configPath, serverName)
	if err != nil {
		return false, err
	}

	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.MCPServers[serverName]; !ok {
		return false, nil
	}
	delete(cfg.MCPServers, serverName)
	return true, SaveClientConfig(configPath, cfg)
}

// InstallStatus describes what a client config currently says about the server.
type InstallStatus struct {
	ConfigPath string       `json:"config_path"`
	Installed  bool         `json:"installed"`
	Entry      *ServerEntry `json:"entry,omitempty"`
	Issues     []string     `json:"issues"`
}

// Inspect reports the installation state without modifying anything.
func Inspect(configPath, serverName string) (*InstallStatus, error) {
	configPath, serverName, err := resolveTarget(configPath, serverName)
	if err != nil {
		return nil, err
	}

	status := &InstallStatus{ConfigPath: configPath, Issues: []string{}}
	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		return nil, err
	}

	entry, ok := cfg.MCPServers[serverName]
	if !ok {
		status.Issues = append(status.Issues, fmt.Sprintf("server %q is not configured", serverName))
		return status, nil
	}
	status.Installed = true
	status.Entry = &entry

	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case runtime.GOOS != "windows" && info.Mode()&0111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}
	return status, nil
}

func resolveTarget(configPath, serverName string) (string, string, error) {
	if configPath == "" {
		path, err := DefaultClientConfigPath()
		if err != nil {
			return "", "", err
		}
		configPath = path
	}
	if serverName == "" {
		serverName = DefaultServerName
	}
	return configPath, serverName, nil
}

func resolveInstallOptions(opts InstallOptions) (InstallOptions, error) {
	configPath, serverName, err := resolveTarget(opts.ConfigPath, opts.ServerName)
	if err != nil {
		return opts, err
	}
	opts.ConfigPath, opts.ServerName = configPath, serverName
	if opts.BinaryPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return opts, fmt.Errorf("could not determine server binary: %w", err)
		}
		opts.BinaryPath = exe
	}
	return opts, nil
}
