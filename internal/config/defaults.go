package config

// Default configuration values.
const (
	DefaultModelsPath = "models"
	DefaultSeedsPath  = "seeds"
	DefaultMacrosPath = "macros"
	DefaultStatePath  = ".leapforge/state.db"
	DefaultTargetName = "dev"
	DefaultThreads    = 4
	DefaultLogLevel   = "warn"
)

func defaults() map[string]any {
	return map[string]any{
		"target_name": DefaultTargetName,
		"models_path": DefaultModelsPath,
		"seeds_path":  DefaultSeedsPath,
		"macros_path": DefaultMacrosPath,
		"state_path":  DefaultStatePath,
		"threads":     DefaultThreads,
		"log_level":   DefaultLogLevel,
	}
}
