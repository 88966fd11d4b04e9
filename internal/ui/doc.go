// Package ui formats the testbox command's terminal output.
//
// Every line goes to ui.Out, which defaults to os.Stderr so that stdout
// carries only machine-readable results such as image references.
//
//	ui.Header("up")
//	ui.Info("starting %s", ui.Bold("redis:7"))
//	ui.Success("ready in %s", elapsed)
//	ui.Footer()
//
// Output styling:
//   - Info:    → Cyan arrow
//   - Success: ✔ Green checkmark
//   - Fail:    ✘ Red X
//   - Warn:    ○ Yellow circle
package ui
