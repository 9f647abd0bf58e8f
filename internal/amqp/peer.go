package amqp

import (
	"pocketledger/internal/logger"
	"pocketledger/internal/realtime"
)

// PeerHandler replays change messages from other instances on the local hub.
// Messages stamped with origin were already delivered locally and are skipped.
func PeerHandler(hub *realtime.Hub, origin string) func(*ChangeMessage) error {
	return func(msg *ChangeMessage) error {
		if msg.Origin == origin || len(msg.Topics) == 0 {
			return nil
		}
		hub.Deliver(msg.Topics...)
		return nil
	}
}

// ResyncOnDial wraps dial so that every successful reconnect makes all local
// subscriptions reload. Peer messages published while the queue was gone are
// not redelivered.
func ResyncOnDial(hub *realtime.Hub, dial func() (*Client, error)) func() (*Client, error) {
	return func() (*Client, error) {
		client, err := dial()
		if err != nil {
			return nil, err
		}
		hub.DeliverAll()
		logger.Named("amqp").Infow("reconnected, reloading subscriptions", "origin", client.Origin())
		return client, nil
	}
}
