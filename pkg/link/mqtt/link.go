// Package mqtt serves the device's channels over an MQTT broker, for
// development and for companion apps out of radio range. Each channel maps
// to a topic pair: the peer writes chunks to <prefix><channel>/rx, the
// device notifies on <prefix><channel>/tx, and readable values are published
// retained on <prefix><channel>.
package mqtt

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/rollpad/rollpad.go/pkg/link"
)

// ClientOptionsFromURL creates ClientOptions from a URL of the form
// mqtt://host:port/topic-prefix.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}

	topicPrefix := strings.TrimPrefix(u.Path, "/")
	if topicPrefix != "" && !strings.HasSuffix(topicPrefix, "/") {
		topicPrefix += "/"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, topicPrefix, nil
}

// Link is the MQTT transport. The broker session stands in for the peer
// connection: connect and connection-lost map to peer attach/detach, which
// keeps the single-peer rule (one session per client id) intact.
type Link struct {
	sink   link.EventSink
	client paho.Client
	prefix string
	broker string
}

// New creates an MQTT link from a broker URL.
func New(brokerURL string, sink link.EventSink) (*Link, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("mqtt url: %w", err)
	}
	l := &Link{sink: sink, prefix: prefix, broker: brokerURL}
	opts.SetOnConnectHandler(l.onConnect)
	opts.SetConnectionLostHandler(l.onConnectionLost)
	l.client = paho.NewClient(opts)
	return l, nil
}

// Run implements framework.Runnable.
func (l *Link) Run(ctx context.Context) error {
	token := l.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	<-ctx.Done()
	l.client.Disconnect(250)
	return ctx.Err()
}

func (l *Link) onConnect(paho.Client) {
	glog.Infof("mqtt connected: %s", l.broker)
	for _, ch := range []link.Channel{link.ChanRosterSync, link.ChanCommand} {
		topic := l.prefix + string(ch) + "/rx"
		if token := l.client.Subscribe(topic, 0, l.dispatch); token.Wait() && token.Error() != nil {
			glog.Errorf("subscribe %q: %v", topic, token.Error())
		}
	}
	l.sink.Post(link.Connected{Peer: l.broker})
}

func (l *Link) onConnectionLost(c paho.Client, err error) {
	glog.Warningf("mqtt connection lost: %v", err)
	l.sink.Post(link.Disconnected{Peer: l.broker})
}

// dispatch runs on paho's callback goroutine and only posts.
func (l *Link) dispatch(c paho.Client, msg paho.Message) {
	topic := strings.TrimPrefix(msg.Topic(), l.prefix)
	ch := link.Channel(strings.TrimSuffix(topic, "/rx"))
	glog.V(2).Infof("RCV %q (%d bytes)", msg.Topic(), len(msg.Payload()))
	l.sink.Post(link.Chunk{Channel: ch, Data: msg.Payload()})
}

// Notify implements link.Link.
func (l *Link) Notify(ch link.Channel, chunk []byte) error {
	if !l.client.IsConnected() {
		return link.ErrNotConnected
	}
	token := l.client.Publish(l.prefix+string(ch)+"/tx", 0, false, chunk)
	token.Wait()
	return token.Error()
}

// SetValue implements link.Link; retained messages stand in for
// characteristic reads.
func (l *Link) SetValue(ch link.Channel, value []byte) error {
	if !l.client.IsConnected() {
		return nil
	}
	token := l.client.Publish(l.prefix+string(ch), 0, true, value)
	token.Wait()
	return token.Error()
}

// Connected implements link.Link.
func (l *Link) Connected() bool {
	return l.client.IsConnected()
}
