// Package mqtt provides MQTT client connectivity for PiOpener.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
// Each door owns three topics under the configured prefix:
//
//	<prefix>/<door>/state         retained JSON door state
//	<prefix>/<door>/command       toggle | open | close
//	<prefix>/<door>/availability  retained online | offline (LWT)
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is off-host
//   - Anyone able to publish to the command topic can move the door;
//     restrict it with broker ACLs
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Door.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().Command(), 1,
//	    func(topic string, payload []byte) error {
//	        return ctrl.Submit(door.Command(payload))
//	    })
package mqtt
