package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E100-E109)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "The configuration file does not exist or cannot be read.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid config syntax",
		Detail:   "The configuration file could not be parsed.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Unsupported config format",
		Detail:   "Configuration files must end in .json, .yaml, .yml or .toml.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Durations are written as Go duration strings such as \"250ms\" or \"5s\".",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A configuration value is out of range.",
	},

	// ============================================
	// Route Errors (E110-E119)
	// ============================================

	"E110": {
		Category: CategoryRoute,
		Message:  "Invalid route pattern",
		Detail:   "The route path could not be parsed.",
	},
	"E111": {
		Category: CategoryRoute,
		Message:  "Duplicate route name",
		Detail:   "Route names must be unique across the whole route table.",
	},
	"E112": {
		Category: CategoryRoute,
		Message:  "Unknown parent route",
		Detail:   "A child route names a parent that is not registered.",
	},
	"E113": {
		Category: CategoryRoute,
		Message:  "Invalid redirect",
		Detail:   "A route redirect must name either a path or a route, not both.",
	},

	// ============================================
	// Navigation Errors (E120-E129)
	// ============================================

	"E120": {
		Category: CategoryNavigation,
		Message:  "Location could not be resolved",
		Detail:   "The target names an unknown route or is missing required params.",
	},
	"E121": {
		Category: CategoryNavigation,
		Message:  "Navigation failed",
		Detail:   "The navigation did not commit.",
	},

	// ============================================
	// Store Errors (E130-E139)
	// ============================================

	"E130": {
		Category: CategoryStore,
		Message:  "State store unavailable",
		Detail:   "The history state store could not be opened.",
	},
	"E131": {
		Category: CategoryStore,
		Message:  "Unsupported state store",
		Detail:   "State stores are given as memory:, bolt:<path> or sqlite:<path>.",
	},

	// ============================================
	// CLI Errors (E140-E149)
	// ============================================

	"E140": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
	"E141": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "The HTTP server stopped with an error.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
