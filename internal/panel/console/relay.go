// Package console relays a caller's WebSocket to the daemon exec socket for
// an instance. The relay carries frames verbatim in both directions; the only
// protocol logic is the auth frame sent when the daemon side opens.
package console

import (
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/trockboppro/v4panel/internal/panel/model"
)

type authFrame struct {
	Event string   `json:"event"`
	Args  []string `json:"args"`
}

// Relay dials the daemon exec endpoint and pumps frames between both sockets
// until either side closes. Both connections are closed on return.
func Relay(caller *websocket.Conn, n model.NodeRef, containerID string) error {
	url := fmt.Sprintf("ws://%s:%d/exec/%s", n.Address, n.Port, containerID)
	daemon, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return &model.RemoteCallError{Op: "WS " + url, Err: err}
	}
	defer daemon.Close()
	defer caller.Close()

	if err := daemon.WriteJSON(authFrame{Event: "auth", Args: []string{n.APIKey}}); err != nil {
		return &model.RemoteCallError{Op: "WS auth " + url, Err: err}
	}

	errCh := make(chan error, 2)
	go pump(caller, daemon, errCh)
	go pump(daemon, caller, errCh)

	// first side to drop ends the session; closing both sockets unblocks the
	// second pump
	err = <-errCh
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Debug().Err(err).Str("container", containerID).Msg("console relay closed")
	}
	return nil
}

func pump(src, dst *websocket.Conn, errCh chan<- error) {
	for {
		msgType, data, err := src.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}
		if err := dst.WriteMessage(msgType, data); err != nil {
			errCh <- err
			return
		}
	}
}
