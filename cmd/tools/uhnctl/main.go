package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  uhnctl push --topic TOPIC --value VALUE [--broker BROKER] [--qos QOS] [--retain]

push publishes a numeric value to an MQTT sensor's command_topic, the
same payload shape internal/protocol/mqttdrv.Driver.Write sends: the
value formatted with strconv.FormatFloat, no envelope.

`)
	flag.PrintDefaults()
}

func main() {
	if len(os.Args) < 2 || os.Args[1] != "push" {
		fmt.Fprintf(os.Stderr, "Unknown or missing command (expected: push)\n")
		usage()
		os.Exit(2)
	}

	pushFlags := flag.NewFlagSet("push", flag.ExitOnError)
	topic := pushFlags.String("topic", "", "MQTT command topic (required)")
	value := pushFlags.Float64("value", 0, "numeric value to publish (required)")
	broker := pushFlags.String("broker", "tcp://localhost:1883", "MQTT broker address")
	qos := pushFlags.Int("qos", 1, "MQTT QoS (0, 1 or 2)")
	retain := pushFlags.Bool("retain", false, "set the MQTT retain flag")
	pushFlags.Usage = usage

	if err := pushFlags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	if *topic == "" {
		fmt.Fprintf(os.Stderr, "--topic is required\n")
		usage()
		os.Exit(2)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(*broker)
	opts.SetClientID(fmt.Sprintf("uhnctl-%d", time.Now().UnixNano()))
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		fmt.Fprintf(os.Stderr, "MQTT connect error: %v\n", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	payload := strconv.FormatFloat(*value, 'f', -1, 64)
	token := client.Publish(*topic, byte(*qos), *retain, payload)
	token.Wait()
	if token.Error() != nil {
		fmt.Fprintf(os.Stderr, "MQTT publish error: %v\n", token.Error())
		os.Exit(1)
	}

	fmt.Printf("published %s to %s\n", payload, *topic)
}
