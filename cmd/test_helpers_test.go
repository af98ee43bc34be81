package cmd

import (
	"flag"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/urfave/cli"
)

// grabStream swaps *target for a pipe for the duration of the returned
// restore func and hands back the captured bytes. Reads run in a
// goroutine so output larger than the pipe buffer cannot wedge the
// command under test.
func grabStream(target **os.File) (restore func() string) {
	orig := *target
	r, w, err := os.Pipe()
	if err != nil {
		panic("test pipe: " + err.Error())
	}
	*target = w

	done := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(r)
		done <- string(b)
	}()

	return func() string {
		w.Close()
		*target = orig
		out := <-done
		r.Close()
		return out
	}
}

// captureOutput runs f with stdout and stderr redirected and returns
// whatever the command printed. CLI actions talk to the terminal
// directly, so the tests intercept the process streams.
func captureOutput(f func()) (stdout, stderr string) {
	restoreOut := grabStream(&os.Stdout)
	restoreErr := grabStream(&os.Stderr)
	f()
	return restoreOut(), restoreErr()
}

func assertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// newContext builds a cli.Context carrying args, the way urfave/cli
// would hand it to the named command's action.
func newContext(app *cli.App, args []string, name string) *cli.Context {
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	if err := set.Parse(args); err != nil {
		panic("test flag parse: " + err.Error())
	}
	ctx := cli.NewContext(app, set, nil)
	ctx.Command = cli.Command{Name: name}
	return ctx
}
