// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package stages

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
	"github.com/dtn7/raknet-go/pkg/raknet/internal/session"
)

// OpenConnectionOneStage tries MTU sizes with OPEN_CONNECTION_REQUEST_1 until the server replies.
type OpenConnectionOneStage struct {
	state     *State
	closeChan <-chan struct{}
}

// Handle this Stage's action based on the previous Stage's State and the StageHandler's close channel.
func (stage *OpenConnectionOneStage) Handle(state *State, closeChan <-chan struct{}) {
	stage.state = state
	stage.closeChan = closeChan
	stage.state.Phase = FirstRequestSent

	conf := stage.state.Configuration
	for _, mtu := range conf.MtuSizes {
		if mtu > conf.MaximumMtu || mtu < session.MinimumMtu {
			continue
		}

		for try := 0; try < conf.RetriesPerMtu; try++ {
			reply, err := stage.request(mtu)
			if err == errRetry {
				continue
			} else if err != nil {
				stage.state.StageError = err
				return
			}

			stage.state.StageError = stage.apply(reply)
			return
		}

		log.WithFields(log.Fields{
			"server": conf.ServerAddress,
			"mtu":    mtu,
		}).Debug("No reply for MTU size, trying the next one")
	}

	stage.state.StageError = NewHandshakeError("no reply to any MTU size", Offline, ErrServerOffline)
}

func (stage *OpenConnectionOneStage) request(mtu int) (*msgs.OpenConnectionReplyOne, error) {
	if err := sendMsgOrClose(stage.state, stage.closeChan, msgs.NewOpenConnectionRequestOne(uint16(mtu))); err != nil {
		return nil, err
	}

	msg, err := receiveReply(stage.state, stage.closeChan, func(msg msgs.Message) bool {
		_, ok := msg.(*msgs.OpenConnectionReplyOne)
		return ok
	})
	if err != nil {
		return nil, err
	}
	return msg.(*msgs.OpenConnectionReplyOne), nil
}

func (stage *OpenConnectionOneStage) apply(reply *msgs.OpenConnectionReplyOne) error {
	if int(reply.Mtu) < session.MinimumMtu {
		return NewHandshakeError(
			fmt.Sprintf("server MTU %d is below %d", reply.Mtu, session.MinimumMtu), InvalidReply, ErrInvalidMtu)
	}

	stage.state.Mtu = int(reply.Mtu)
	if stage.state.Mtu > stage.state.Configuration.MaximumMtu {
		stage.state.Mtu = stage.state.Configuration.MaximumMtu
	}
	stage.state.ServerGuid = reply.ServerGuid

	log.WithFields(log.Fields{
		"server":      stage.state.Configuration.ServerAddress,
		"server guid": reply.ServerGuid,
		"mtu":         stage.state.Mtu,
	}).Debug("Received first open connection reply")
	return nil
}
