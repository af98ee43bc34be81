package unveilcli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/unveil/unveil/common"
)

// ErrDisconnect is returned by a Handler to stop the Listen loop cleanly.
var ErrDisconnect = errors.New("disconnect")

// Dispatcher routes daemon updates to the handlers registered for their
// update type.
type Dispatcher struct {
	Handlers map[common.UpdateType][]Handler
}

// AddHandler registers h for updates of type t.
func (d *Dispatcher) AddHandler(t common.UpdateType, h Handler) {
	if d.Handlers == nil {
		d.Handlers = make(map[common.UpdateType][]Handler)
	}
	d.Handlers[t] = append(d.Handlers[t], h)
}

// RemoveHandler drops all handlers registered for t.
func (d *Dispatcher) RemoveHandler(t common.UpdateType) {
	delete(d.Handlers, t)
}

func (d *Dispatcher) process(buf []byte) error {
	var res Response
	err := json.Unmarshal(buf, &res)
	if err != nil {
		return fmt.Errorf("failed to parse (%s): '%s'", err.Error(), string(buf))
	}
	if !res.Ok {
		return errors.New(res.Error)
	}
	if res.Update == nil {
		return errors.New("update missing in response")
	}
	hs := d.Handlers[res.Update.Type]
	if len(hs) == 0 {
		return fmt.Errorf("no handler for update type %q", res.Update.Type)
	}
	for _, h := range hs {
		if err := h.Handle(res.Update.Message); err != nil {
			return err
		}
	}
	return nil
}
