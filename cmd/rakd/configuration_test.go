// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/raknet-go/pkg/node"
)

func writeConfig(t *testing.T, filename, content string) {
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

const validConfig = `
[node]
guid = 42
mtu = 1200
retry-time = "2s"

[logging]
level = "warn"
format = "json"

[agents]
ping = "*"

[[listen]]
endpoint = "127.0.0.1:0"
banned = ["10.0.0.1"]

[[listen]]
endpoint = "127.0.0.1:0"
max-connections = 3

[[peer]]
endpoint = "127.0.0.1:19132"
mtu-sizes = [1200, 576]
`

func TestParseConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rakd.toml")
	writeConfig(t, filename, validConfig)

	conf, err := parseConfig(filename)
	if err != nil {
		t.Fatal(err)
	}

	if conf.Node.Guid != 42 || conf.retryTime() != 2*time.Second {
		t.Fatalf("Unexpected node block %v", conf.Node)
	}
	if conf.Logging.Level != "warn" || conf.Logging.Format != "json" || conf.Agents.Ping != "*" {
		t.Fatalf("Unexpected blocks %v, %v", conf.Logging, conf.Agents)
	}

	if len(conf.Listen) != 2 || len(conf.Peer) != 1 {
		t.Fatalf("Expected two listen and one peer block, got %v and %v", conf.Listen, conf.Peer)
	}

	first := conf.listenerConfig(conf.Listen[0])
	if first.Guid != 42 || first.Mtu != 1200 || first.MaxConnections >= 0 || len(first.Banned) != 1 {
		t.Fatalf("Unexpected listener config %v", first)
	}
	if second := conf.listenerConfig(conf.Listen[1]); second.MaxConnections != 3 {
		t.Fatalf("Expected three max connections, got %d", second.MaxConnections)
	}

	cc := conf.clientConfig(conf.Peer[0])
	if cc.Guid != 42 || cc.MaximumMtu != 1200 || len(cc.MtuSizes) != 2 || cc.MtuSizes[0] != 1200 {
		t.Fatalf("Unexpected client config %v", cc)
	}
	if err := cc.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rakd.toml")
	writeConfig(t, filename, `
[node]
mtu = 23
retry-time = "soon"

[logging]
level = "loud"
format = "xml"

[agents]
rest = true
ping = "nope"

[[listen]]
endpoint = "localhost"
banned = ["somebody"]
`)

	_, err := parseConfig(filename)

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("Expected a multierror, got %v", err)
	}
	if l := len(merr.Errors); l != 8 {
		t.Fatalf("Expected eight errors, got %d: %v", l, merr)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rakd.toml")
	writeConfig(t, filename, `
[[peer]]
endpoint = "127.0.0.1:19132"
`)

	conf, err := parseConfig(filename)
	if err != nil {
		t.Fatal(err)
	}

	if conf.retryTime() != node.DefaultRetryTime {
		t.Fatalf("Expected default retry time, got %v", conf.retryTime())
	}
	if cc := conf.clientConfig(conf.Peer[0]); cc.MaximumMtu != 1492 || len(cc.MtuSizes) != 4 {
		t.Fatalf("Unexpected default client config %v", cc)
	}
}

func TestStartDaemon(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rakd.toml")
	writeConfig(t, filename, validConfig)

	conf, err := parseConfig(filename)
	if err != nil {
		t.Fatal(err)
	}

	d, err := startDaemon(conf)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestWatchConfig(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(&log.TextFormatter{})

	filename := filepath.Join(t.TempDir(), "rakd.toml")
	writeConfig(t, filename, validConfig)

	log.SetLevel(log.InfoLevel)

	watcher, err := watchConfig(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Close()

	writeConfig(t, filename, validConfig+"\n# touched\n")

	deadline := time.Now().Add(5 * time.Second)
	for log.GetLevel() != log.WarnLevel {
		if time.Now().After(deadline) {
			t.Fatalf("Log level was not reloaded, still %v", log.GetLevel())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
