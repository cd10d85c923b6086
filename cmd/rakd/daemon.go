// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/agent"
	"github.com/dtn7/raknet-go/pkg/node"
)

// daemon bundles the Node with its optional webserver.
type daemon struct {
	node      *node.Node
	webserver *http.Server
}

// startDaemon creates the Node, its agents and starts all listeners and peers.
func startDaemon(conf tomlConfig) (d *daemon, err error) {
	d = &daemon{node: node.NewNodeWithClock(clockwork.NewRealClock(), conf.retryTime())}

	if conf.Agents.Ping != "" {
		d.node.RegisterAgent(agent.NewPing(agent.MustParseEndpoint(conf.Agents.Ping)))
	}

	if conf.Agents.Webserver != "" {
		d.startWebserver(conf.Agents)
	}

	for _, listen := range conf.Listen {
		if _, lErr := d.node.AddListener(conf.listenerConfig(listen)); lErr != nil {
			err = multierror.Append(lErr, d.Close())
			return nil, err
		}
	}

	for _, peer := range conf.Peer {
		if pErr := d.node.AddPeer(peer.Endpoint, conf.clientConfig(peer)); pErr != nil {
			log.WithFields(log.Fields{
				"peer":  peer.Endpoint,
				"error": pErr,
			}).Warn("Failed to configure a peer")
		}
	}

	return d, nil
}

func (d *daemon) startWebserver(conf agentsConf) {
	r := mux.NewRouter()

	if conf.Rest {
		restRouter := r.PathPrefix("/rest").Subrouter()
		d.node.RegisterAgent(agent.NewRestAgent(restRouter))
	}

	if conf.Websocket {
		ws := agent.NewWebSocketAgent()
		r.Handle("/ws", ws)
		d.node.RegisterAgent(ws)
	}

	d.webserver = &http.Server{
		Addr:    conf.Webserver,
		Handler: r,
	}

	go func() {
		if err := d.webserver.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Webserver errored")
		}
	}()

	log.WithFields(log.Fields{
		"address":   conf.Webserver,
		"rest":      conf.Rest,
		"websocket": conf.Websocket,
	}).Info("Started webserver")
}

// Close the webserver first and the Node afterwards.
func (d *daemon) Close() (err error) {
	if d.webserver != nil {
		if wsErr := d.webserver.Close(); wsErr != nil {
			err = multierror.Append(err, wsErr)
		}
	}

	if nodeErr := d.node.Close(); nodeErr != nil {
		err = multierror.Append(err, nodeErr)
	}
	return
}

// watchConfig reapplies the Logging-configuration block whenever the configuration file changes.
//
// The file's directory is watched to survive editors replacing the file.
func watchConfig(filename string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	filename = filepath.Clean(filename)
	if err := watcher.Add(filepath.Dir(filename)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if filepath.Clean(event.Name) != filename || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				conf, err := parseConfig(filename)
				if err != nil {
					log.WithError(err).Warn("Ignoring changed config")
					continue
				}

				setupLogging(conf.Logging)
				log.WithField("config", filename).Info("Reloaded logging configuration")

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("Config watcher errored")
			}
		}
	}()

	return watcher, nil
}
