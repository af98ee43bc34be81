package cmd

const DESCRIPTION = `
Unveil is a readiness gate for page reveals. It holds a page back
until its readiness signals resolve, bounded by a minimum display
floor and a timeout ceiling, and streams one monotonic progress
value while it waits.
`

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`

const (
	WatchDescription = `The watch command gates a page behind its readiness
signals. It scans the URL, tracks every awaited asset and streams
one monotonic progress value until the page reveals.

Example:
        unveil https://domain.com/landing
					OR
        unveil watch https://domain.com/landing

`
	AttachDescription = `The attach command joins the progress stream of a
gate run that is already in flight, using the run id which you can
retrieve with "unveil list".

Example:
        unveil attach <run id>

`
	ListDescription = `The list command displays active gate runs along with
their run ids which can be used to attach to or cancel a run.

Example:
        unveil list

`
	StatusDescription = `The status command prints one snapshot of a gate
run: its state, the blended progress value and the asset counters.

Example:
        unveil status <run id>

`
	CancelDescription = `The cancel command stops a running gate before it
reveals. The page stays hidden and the run ends in the canceled
state.

Example:
        unveil cancel <run id>

`
	FlushDescription = `The flush command deletes finished gate runs. With a
run id it drops that one run; without arguments it drops every
finished run together with the journal rows and session flags.

Example:
        unveil flush

`
	HistoryDescription = `The history command lists journaled records of
finished runs, newest first.

Example:
        unveil history --limit 20

`
	HeuristicDescription = `The heuristic command manages readiness scripts
on the daemon. A script exports isReady(el) and decides which
matched elements already count as done.

Example:
        unveil heuristic load spinner ./spinner.js
        unveil heuristic list
        unveil heuristic drop spinner

`
)
