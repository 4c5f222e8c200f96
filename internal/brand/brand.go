// Package brand provides centralized branding constants for the compiler.
// This makes it easy to fork or white-label the tool by changing brand.json.
//
// The brand identity is loaded from brand.json at compile time via go:embed.
// This allows other tools (scripts, docs generators) to read the same file.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding information
type Brand struct {
	Name            string `json:"name"`
	LowerName       string `json:"lowerName"`
	Vendor          string `json:"vendor"`
	Website         string `json:"website"`
	Repository      string `json:"repository"`
	Description     string `json:"description"`
	Tagline         string `json:"tagline"`
	ConfigEnvPrefix string `json:"configEnvPrefix"`
	BinaryName      string `json:"binaryName"`
	ProjectFileName string `json:"projectFileName"`
	PluginDirName   string `json:"pluginDirName"`
	DefaultTable    string `json:"defaultTable"`
	DefaultFamily   string `json:"defaultFamily"`
	Copyright       string `json:"copyright"`
	License         string `json:"license"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	// Initialize exported variables after JSON is parsed
	Name = b.Name
	LowerName = b.LowerName
	Vendor = b.Vendor
	Website = b.Website
	Repository = b.Repository
	Description = b.Description
	Tagline = b.Tagline
	ConfigEnvPrefix = b.ConfigEnvPrefix
	BinaryName = b.BinaryName
	ProjectFileName = b.ProjectFileName
	PluginDirName = b.PluginDirName
	DefaultTable = b.DefaultTable
	DefaultFamily = b.DefaultFamily
	Copyright = b.Copyright
	License = b.License
}

// Exported variables for backward compatibility and convenience
var (
	Name            string
	LowerName       string
	Vendor          string
	Website         string
	Repository      string
	Description     string
	Tagline         string
	ConfigEnvPrefix string
	BinaryName      string
	ProjectFileName string
	PluginDirName   string
	DefaultTable    string
	DefaultFamily   string
	Copyright       string
	License         string

	// Version is set at build time via -ldflags
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Get returns the full Brand struct
func Get() Brand {
	return b
}

// GetPluginTimeout returns the plugin timeout override from the environment,
// or the empty string when unset.
// Priority: NFTGRAPH_PLUGIN_TIMEOUT > project settings > built-in default.
func GetPluginTimeout() string {
	return os.Getenv(ConfigEnvPrefix + "_PLUGIN_TIMEOUT")
}
