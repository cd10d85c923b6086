// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package stages

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/dtn7/raknet-go/pkg/raknet/internal/msgs"
)

// StageSetup wraps a Stage with two possible hooks (pre and post) to be used within the StageHandler.
type StageSetup struct {
	// Stage to be executed.
	Stage Stage

	// PreHook will be executed before starting the Stage, if not nil.
	PreHook func(*StageHandler, *State) error
	// PostHook will be executed after a finished Stage, if not nil.
	PostHook func(*StageHandler, *State) error
}

// StageHandler executes a sequence of Stages and passes the State from one Stage to another. Errors might be propagated
// back through the Error method.
type StageHandler struct {
	stages []StageSetup
	state  *State

	currentStage      StageSetup
	currentStageMutex sync.RWMutex

	errChan   chan error
	closeChan chan struct{}
	closeOnce sync.Once
}

// DefaultStages of a client's handshake.
func DefaultStages() []StageSetup {
	return []StageSetup{{Stage: &OpenConnectionOneStage{}}, {Stage: &OpenConnectionTwoStage{}}}
}

// NewStageHandler for a slice of Stages, Message channels and a Configuration.
func NewStageHandler(stages []StageSetup, msgIn <-chan msgs.Message, msgOut chan<- msgs.Message, config Configuration) (sh *StageHandler) {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	sh = &StageHandler{
		stages: stages,
		state: &State{
			Configuration: config,
			MsgIn:         msgIn,
			MsgOut:        msgOut,
			Phase:         Idle,
		},

		errChan:   make(chan error),
		closeChan: make(chan struct{}),
	}

	go sh.handler()

	return
}

func (sh *StageHandler) handler() {
	defer close(sh.errChan)

	defer func() {
		sh.currentStageMutex.Lock()
		sh.currentStage = StageSetup{}
		sh.currentStageMutex.Unlock()
	}()

	for i := 0; i < len(sh.stages); i++ {
		sh.currentStageMutex.Lock()
		sh.currentStage = sh.stages[i]
		sh.currentStageMutex.Unlock()

		if sh.currentStage.PreHook != nil {
			if err := sh.currentStage.PreHook(sh, sh.state); err != nil {
				sh.errChan <- err
				return
			}
		}

		sh.currentStage.Stage.Handle(sh.state, sh.closeChan)
		if err := sh.state.StageError; err != nil {
			sh.errChan <- err
			return
		}

		if sh.stages[i].PostHook != nil {
			if err := sh.stages[i].PostHook(sh, sh.state); err != nil {
				sh.errChan <- err
				return
			}
		}
	}

	sh.state.Phase = Assembled
}

// Error might return errors risen in a Stage. The channel is closed without a value after a successful handshake.
func (sh *StageHandler) Error() <-chan error {
	return sh.errChan
}

// Result of the handshake. It must only be inspected after the Error channel was closed.
func (sh *StageHandler) Result() State {
	return *sh.state
}

// Close this StageHandler and the current Stage.
func (sh *StageHandler) Close() error {
	sh.closeOnce.Do(func() { close(sh.closeChan) })
	return nil
}
