// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Command brokerctl is a thin CLI over pkg/client for manually
// pushing a payload to, or pulling records from, a broker.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Lyn-liyuan/sonicrabMQ/pkg/client"
)

var (
	addr   = flag.String("addr", "127.0.0.1:7200", "Broker server address")
	key    = flag.String("key", "", "Shared authorization credential")
	broker = flag.String("broker", "", "Broker name")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || *broker == "" {
		usage()
		os.Exit(2)
	}

	c := client.New(*addr, *key)
	defer c.Close()

	switch args[0] {
	case "push":
		if len(args) < 2 {
			usage()
			os.Exit(2)
		}
		if err := c.Push(*broker, []byte(args[1])); err != nil {
			log.Fatalf("alert: push failed: %s", err)
		}
		fmt.Println("OK")

	case "pull":
		var offset uint64
		if len(args) >= 2 {
			if _, err := fmt.Sscanf(args[1], "%d", &offset); err != nil {
				log.Fatalf("alert: invalid offset %q: %s", args[1], err)
			}
		}

		records, err := c.Pull(*broker, offset)
		if err != nil {
			log.Fatalf("alert: pull failed: %s", err)
		}

		for _, r := range records {
			fmt.Printf("%d\t%s\n", r.Offset, r.Payload)
		}

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: brokerctl -broker NAME [-addr HOST:PORT] [-key KEY] push MESSAGE\n")
	fmt.Fprintf(os.Stderr, "       brokerctl -broker NAME [-addr HOST:PORT] [-key KEY] pull [OFFSET]\n")
}
