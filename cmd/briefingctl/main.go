// briefingctl publishes control commands to a running briefing daemon over
// the NATS bus and can watch the event subjects it emits.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/protocol"
)

var version = "0.1.0-dev"

func main() {
	var serverURL string
	flag.StringVar(&serverURL, "server", nats.DefaultURL, "NATS server URL")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "version":
		fmt.Println(version)
		return
	case "generate", "play", "pause", "stop", "pitch", "watch":
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage()
		os.Exit(2)
	}

	conn, err := nats.Connect(serverURL, nats.Name("briefingctl"), nats.Timeout(2*time.Second))
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to %s: %v\n", serverURL, err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := run(conn, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: briefingctl [-server URL] <generate|play|pause|stop|pitch CENTS|watch|version>")
}

func run(conn *nats.Conn, args []string) error {
	switch args[0] {
	case "generate":
		return publish(conn, protocol.SubjectGenerate, protocol.GenerateCommand{RequestedAt: time.Now().UTC()})
	case "play", "pause", "stop":
		return publish(conn, protocol.SubjectTransport, protocol.TransportCommand{Action: args[0]})
	case "pitch":
		if len(args) < 2 {
			return fmt.Errorf("pitch requires a cents value")
		}
		var cents float64
		if _, err := fmt.Sscanf(args[1], "%f", &cents); err != nil {
			return fmt.Errorf("invalid cents value %q", args[1])
		}
		return publish(conn, protocol.SubjectTransport, protocol.TransportCommand{Action: "pitch", Cents: cents})
	case "watch":
		return watch(conn)
	}
	return nil
}

func publish(conn *nats.Conn, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := conn.Publish(subject, data); err != nil {
		return err
	}
	return conn.Flush()
}

// watch prints generation, transcript, and progress events until interrupted.
func watch(conn *nats.Conn) error {
	subjects := []string{
		protocol.SubjectGenerationState,
		protocol.SubjectTranscript,
		protocol.SubjectProgress,
	}
	for _, subject := range subjects {
		sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
			fmt.Printf("%s %s\n", msg.Subject, msg.Data)
		})
		if err != nil {
			return err
		}
		defer sub.Drain()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}
