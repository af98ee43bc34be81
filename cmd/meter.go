package cmd

import (
	"fmt"
	"time"

	"github.com/vbauerster/mpb/v8"
	cmdCommon "github.com/unveil/unveil/cmd/common"
	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/pkg/unveilcli"
)

func gateProgress(bar *mpb.Bar) func(gr *common.GatingResponse) error {
	return func(gr *common.GatingResponse) error {
		if gr.Progress == nil {
			return nil
		}
		cur := int64(gr.Progress.Combined * float64(cmdCommon.GateBarTotal))
		if cur > cmdCommon.GateBarTotal {
			cur = cmdCommon.GateBarTotal
		}
		// The bar only moves forward; a stale frame cannot pull it back.
		if cur > bar.Current() {
			bar.SetCurrent(cur)
		}
		return nil
	}
}

func gateRevealed(client *unveilcli.Client, bar *mpb.Bar) func(gr *common.GatingResponse) error {
	return func(gr *common.GatingResponse) error {
		defer client.Disconnect()
		if !bar.Completed() {
			bar.SetCurrent(cmdCommon.GateBarTotal)
		}
		if gr.Reveal != nil {
			if gr.Reveal.TimedOut {
				fmt.Printf("\nRevealed by timeout after %s.\n", time.Duration(gr.Reveal.ElapsedMs)*time.Millisecond)
			} else {
				fmt.Printf("\nRevealed after %s.\n", time.Duration(gr.Reveal.ElapsedMs)*time.Millisecond)
			}
		}
		return nil
	}
}

func gateCanceled(client *unveilcli.Client, bar *mpb.Bar) func(gr *common.GatingResponse) error {
	return func(gr *common.GatingResponse) error {
		bar.Abort(false)
		fmt.Println("\nGate canceled:", gr.RunId)
		client.Disconnect()
		return nil
	}
}

// RegisterHandlers wires the streamed gate updates to a progress bar and
// disconnects the client once the run is terminal.
func RegisterHandlers(client *unveilcli.Client) {
	p := mpb.New(mpb.WithWidth(64), mpb.WithRefreshRate(time.Millisecond*120))
	bar := cmdCommon.InitGateBar(p, "Gating")
	client.AddHandler(
		common.UPDATE_GATING,
		unveilcli.NewGatingHandler(common.GateProgress, gateProgress(bar)),
	)
	client.AddHandler(
		common.UPDATE_GATING,
		unveilcli.NewGatingHandler(common.GateRevealed, gateRevealed(client, bar)),
	)
	client.AddHandler(
		common.UPDATE_GATING,
		unveilcli.NewGatingHandler(common.GateCanceled, gateCanceled(client, bar)),
	)
}
