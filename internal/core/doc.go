// Package core holds the cleaning workspace: tables, file history and the
// task registry.
//
// Nothing here knows about HTTP or the command line. The web server and the
// tidycsv CLI both drive a [Service].
//
// # Tables
//
// A [Table] is a header plus string rows. Each column carries a [Kind] that
// records the type assigned by assign_types or iso_datetime; exporters use it
// to write typed cells. [ReadTable] turns an uploaded CSV or TXT file into a
// table, detecting the delimiter and repairing ragged rows.
//
// # Tasks
//
// Transformations register themselves at init time with [Register]:
//
//	core.Register(core.TaskDefinition{
//	    Info:   core.TaskInfo{Key: "clean_headers", Group: "Columns", Label: "Clean headers"},
//	    Params: func() any { return &CleanHeadersParams{Case: "none"} },
//	    Apply:  applyCleanHeaders,
//	})
//
// Apply functions receive the current tables and decoded params and return a
// new table. They never modify their input, which is what lets the history
// keep plain snapshots.
//
// # History
//
// Every file in a session keeps its original table, its current table and
// bounded undo and redo stacks of whole-table snapshots. See [FileRegistry].
//
// # Recipes
//
// The applied tasks of a file can be exported as a [Recipe] and replayed on
// other files. Stored recipes are suggested for new uploads when their
// recorded headers overlap the upload's headers by [RecipeMatchThreshold].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages with a support code
// by [MapError]. See error_messages.go for the full list.
package core
