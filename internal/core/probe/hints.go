package probe

import "github.com/fabric-powerbi/fabkit/internal/core/platform"

// Hint is one remediation action for an unsatisfied prerequisite.
type Hint struct {
	Label   string
	Command string // shell command to run, if any
	URL     string // documentation page, if any
}

const (
	pythonURL = "https://www.python.org/downloads/"
	uvURL     = "https://docs.astral.sh/uv/getting-started/installation/"
	azureURL  = "https://learn.microsoft.com/en-us/cli/azure/install-azure-cli"
	odbcURL   = "https://learn.microsoft.com/en-us/sql/connect/odbc/download-odbc-driver-for-sql-server"
)

var headlines = map[Tool]string{
	Python:    "Python 3.12+ not found. Required for MCP servers.",
	UV:        "uv not found. Required for MCP server dependency management.",
	AzureCLI:  "Azure CLI not found. Required for Fabric MCP tools.",
	AzureAuth: "Not logged in to Azure. MCP tools will fail without authentication.",
	ODBC:      "ODBC Driver 18 not found (optional, only needed for SQL queries against lakehouses/warehouses).",
}

var installCommands = map[Tool]map[platform.Family]string{
	Python: {
		platform.Windows: "winget install -e --id Python.Python.3.12",
		platform.Darwin:  "brew install python@3.12",
		platform.Linux:   "sudo apt install python3.12 python3.12-venv",
	},
	UV: {
		platform.Windows: `powershell -ExecutionPolicy ByPass -c "irm https://astral.sh/uv/install.ps1 | iex"`,
		platform.Darwin:  "curl -LsSf https://astral.sh/uv/install.sh | sh",
		platform.Linux:   "curl -LsSf https://astral.sh/uv/install.sh | sh",
	},
	AzureCLI: {
		platform.Windows: "winget install -e --id Microsoft.AzureCLI",
		platform.Darwin:  "brew install azure-cli",
		platform.Linux:   "curl -sL https://aka.ms/InstallAzureCLIDeb | sudo bash",
	},
	AzureAuth: {
		platform.Windows: "az login",
		platform.Darwin:  "az login",
		platform.Linux:   "az login",
	},
	ODBC: {
		platform.Windows: "winget install -e --id Microsoft.msodbcsql18",
		platform.Darwin:  "brew tap microsoft/mssql-release && brew install msodbcsql18",
	},
}

var docURLs = map[Tool]string{
	Python:   pythonURL,
	UV:       uvURL,
	AzureCLI: azureURL,
	ODBC:     odbcURL,
}

// Headline is the one-line warning shown when tool is unsatisfied.
func Headline(tool Tool) string {
	if h, ok := headlines[tool]; ok {
		return h
	}
	return string(tool) + " not available."
}

// Remediation returns the actions that fix an unsatisfied tool on family.
func Remediation(tool Tool, family platform.Family) []Hint {
	var hints []Hint
	if cmd := installCommands[tool][family]; cmd != "" {
		label := "Install now"
		if tool == AzureAuth {
			label = "Log in"
		}
		hints = append(hints, Hint{Label: label, Command: cmd})
	}
	if url := docURLs[tool]; url != "" {
		hints = append(hints, Hint{Label: "Install guide", URL: url})
	}
	return hints
}
