// Package mqtt provides the relay gateway's MQTT client.
//
// The gateway mirrors relay state onto a broker and accepts commands from it:
//
//	<prefix>/relay/<name>/state   retained relay snapshot (published)
//	<prefix>/status               retained system status (published)
//	<prefix>/gateway/online       retained "true"/"false", "false" is the LWT
//	<prefix>/relay/<name>/set     ON, OFF, TOGGLE or STATUS (subscribed)
//	<prefix>/preset/set           preset name (subscribed)
//
// The client reconnects automatically and restores its subscriptions on
// every reconnect. Handlers run on paho's goroutines and are wrapped with
// panic recovery.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllRelaySets(), 1,
//	    func(topic string, payload []byte) error {
//	        name, _ := topics.RelayFromSetTopic(topic)
//	        ...
//	    })
package mqtt
