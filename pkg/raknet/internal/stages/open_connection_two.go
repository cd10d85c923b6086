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

// OpenConnectionTwoStage confirms the negotiated MTU and exchanges the guids with OPEN_CONNECTION_REQUEST_2.
type OpenConnectionTwoStage struct {
	state     *State
	closeChan <-chan struct{}
}

// Handle this Stage's action based on the previous Stage's State and the StageHandler's close channel.
func (stage *OpenConnectionTwoStage) Handle(state *State, closeChan <-chan struct{}) {
	stage.state = state
	stage.closeChan = closeChan
	stage.state.Phase = SecondRequestSent

	conf := stage.state.Configuration
	req := &msgs.OpenConnectionRequestTwo{
		ServerAddress: conf.ServerAddress,
		Mtu:           uint16(stage.state.Mtu),
		ClientGuid:    conf.ClientGuid,
	}

	for try := 0; try < conf.Retries; try++ {
		if err := sendMsgOrClose(stage.state, stage.closeChan, req); err != nil {
			stage.state.StageError = err
			return
		}

		msg, err := receiveReply(stage.state, stage.closeChan, func(msg msgs.Message) bool {
			_, ok := msg.(*msgs.OpenConnectionReplyTwo)
			return ok
		})
		if err == errRetry {
			continue
		} else if err != nil {
			stage.state.StageError = err
			return
		}

		stage.state.StageError = stage.apply(msg.(*msgs.OpenConnectionReplyTwo))
		return
	}

	stage.state.StageError = NewHandshakeError("no reply to the second open connection request", Offline, ErrServerOffline)
}

func (stage *OpenConnectionTwoStage) apply(reply *msgs.OpenConnectionReplyTwo) error {
	logger := log.WithFields(log.Fields{
		"server":    stage.state.Configuration.ServerAddress,
		"agreed":    stage.state.Mtu,
		"reply mtu": reply.Mtu,
	})

	if reply.ServerGuid != stage.state.ServerGuid {
		return NewHandshakeError(
			fmt.Sprintf("server guid %d differs from %d", reply.ServerGuid, stage.state.ServerGuid),
			InvalidReply, ErrGuidMismatch)
	}

	switch mtu := int(reply.Mtu); {
	case mtu > stage.state.Mtu:
		logger.Warn("Server replied with a higher MTU than agreed, keeping the agreed one")
	case mtu < session.MinimumMtu:
		return NewHandshakeError(
			fmt.Sprintf("server MTU %d is below %d", mtu, session.MinimumMtu), InvalidReply, ErrInvalidMtu)
	default:
		stage.state.Mtu = mtu
	}

	stage.state.ClientAddress = reply.ClientAddress

	logger.Debug("Received second open connection reply")
	return nil
}
