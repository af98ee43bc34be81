package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli"
	"github.com/unveil/unveil/cmd/common"
	"github.com/unveil/unveil/pkg/gatelib"
	"github.com/unveil/unveil/pkg/unveilcli"
)

var (
	watchSource     string
	minSeconds      float64
	timeoutSeconds  float64
	quietMs         int
	scopeSelector   string
	customSelector  string
	customEventName string
	heuristicName   string
	blendStrategy   string
	oncePerSession  bool
	sessionId       string
	includeBg       bool
	userAgent       string
	daemonURI       string

	watchFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "source, s",
			Usage:       "document host for the run: page (static scan) or shell (report-fed)",
			Destination: &watchSource,
		},
		cli.Float64Flag{
			Name:        "min-seconds, m",
			Usage:       "minimum display floor in seconds before the reveal",
			Destination: &minSeconds,
		},
		cli.Float64Flag{
			Name:        "timeout, t",
			Usage:       "timeout ceiling in seconds after which the gate reveals regardless",
			Destination: &timeoutSeconds,
		},
		cli.IntFlag{
			Name:        "quiet-ms, q",
			Usage:       "how long the pending set must stay empty before the gate settles",
			Destination: &quietMs,
		},
		cli.StringFlag{
			Name:        "scope",
			Usage:       "css selector limiting which part of the page is tracked",
			Destination: &scopeSelector,
		},
		cli.StringFlag{
			Name:        "selector",
			Usage:       "css selector of custom elements the gate must wait for",
			Destination: &customSelector,
		},
		cli.StringFlag{
			Name:        "event",
			Usage:       "element event that resolves a custom selector match",
			Destination: &customEventName,
		},
		cli.StringFlag{
			Name:        "heuristic",
			Usage:       "name of a loaded readiness script applied to matched elements",
			Destination: &heuristicName,
		},
		cli.StringFlag{
			Name:        "blend",
			Usage:       "progress blend strategy: sequential or weighted",
			Destination: &blendStrategy,
		},
		cli.BoolFlag{
			Name:        "once",
			Usage:       "gate only once per session; later runs reveal immediately",
			Destination: &oncePerSession,
		},
		cli.StringFlag{
			Name:        "session-id",
			Usage:       "session identity used with --once",
			Destination: &sessionId,
		},
		cli.BoolFlag{
			Name:        "backgrounds, b",
			Usage:       "track css background images as awaited assets",
			Destination: &includeBg,
		},
		cli.StringFlag{
			Name:        "user-agent, u",
			Usage:       "user agent header sent when scanning the page",
			Destination: &userAgent,
		},
		cli.StringFlag{
			Name:        "daemon-uri",
			Usage:       "daemon URI to connect to (e.g., tcp://localhost:9090 or unix:///tmp/unveild.sock)",
			Destination: &daemonURI,
			EnvVar:      "UNVEIL_DAEMON_URI",
		},
	}
)

func watch(ctx *cli.Context) (err error) {
	url := ctx.Args().First()
	if url == "" {
		if ctx.Command.Name == "" {
			return common.Help(ctx)
		}
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no url provided"),
		)
	} else if url == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := unveilcli.NewClientWithURI(daemonURI)
	if err != nil {
		common.PrintRuntimeErr(ctx, "watch", "new_client", err)
		return nil
	}
	client.CheckVersionMismatch(currentBuildArgs.Version)
	url = strings.TrimSpace(url)

	var headers gatelib.Headers
	if userAgent != "" {
		headers = gatelib.Headers{{
			Key: gatelib.USER_AGENT_KEY, Value: userAgent,
		}}
	}

	w, err := client.Watch(url, &unveilcli.WatchOpts{
		Source:             watchSource,
		MinSeconds:         minSeconds,
		TimeoutSeconds:     timeoutSeconds,
		QuietMs:            quietMs,
		ScopeSelector:      scopeSelector,
		CustomSelector:     customSelector,
		CustomEventName:    customEventName,
		Heuristic:          heuristicName,
		BlendStrategy:      blendStrategy,
		OncePerSession:     oncePerSession,
		SessionId:          sessionId,
		IncludeBackgrounds: includeBg,
		Headers:            headers,
	})
	if err != nil {
		common.PrintRuntimeErr(ctx, "watch", "client-watch", err)
		return nil
	}
	if w.Memoized {
		fmt.Println("Session already gated, revealing immediately.")
		return nil
	}
	txt := fmt.Sprintf(`
Gate Info
Run Id`+"\t\t"+`: %s
Url`+"\t\t"+`: %s
Floor`+"\t\t"+`: %.1fs
Ceiling`+"\t\t"+`: %.1fs
`,
		w.RunId,
		w.Url,
		w.MinSeconds,
		w.TimeoutSeconds,
	)
	fmt.Println(txt)
	RegisterHandlers(client)
	return client.Listen()
}
