// Package tasks registers every cleaning operation with the core registry.
// Import it for side effects to make the tasks available:
//
//	import _ "github.com/JonMunkholm/tidycsv/internal/core/tasks"
//
// Each file groups related tasks and registers them from init.
package tasks
