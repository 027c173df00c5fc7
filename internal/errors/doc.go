// Package errors provides structured, actionable error messages for the
// waypoint CLI and config loader.
//
// Errors carry:
//   - A registered code with a short message and an explanation
//   - The file location, with surrounding lines, for config errors
//   - A suggestion and an example of the correct form
//   - The underlying error, reachable through errors.Is/As
//
// # Error Categories
//
//   - config: config file loading and validation
//   - route: route table problems (bad patterns, duplicate names)
//   - navigation: resolution and navigation failures reported by the CLI
//   - store: history state store setup
//   - cli: command line usage
//
// # Usage
//
//	err := errors.New("E101").
//	    WithLocation("waypoint.yaml", 4, 11).
//	    WithSuggestion("Close the regex group")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E101: Invalid config syntax
//	//
//	//   waypoint.yaml:4:11
//	//
//	//      2 │   - path: /
//	//      3 │     name: home
//	//   →  4 │   - path: /users/:id(
//	//        │           ^
//	//      5 │     name: user
//	//
//	//   Hint: Close the regex group
package errors
