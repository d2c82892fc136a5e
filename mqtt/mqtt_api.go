package mqtt

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gsarrafian/PneumaticsApp/gateway"
	"github.com/gsarrafian/PneumaticsApp/logic"
	"github.com/gsarrafian/PneumaticsApp/util"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const CONNECT_RETRY_TIMEOUT = 10 * time.Second
const MQTT_TIMEOUT = 10 * time.Second

const DefaultPrefix = "pistons"

// BrokerOptions parses broker (MQTT_BROKER if empty) into client options and the topic prefix, which is the
// path of the broker url
func BrokerOptions(broker string, cid string) (opts *mqtt.ClientOptions, prefix string, err error) {
	if broker == "" {
		broker = os.Getenv("MQTT_BROKER")
	}
	if broker == "" {
		broker = "tcp://localhost:1883"
	}
	brokerURI, err := url.Parse(broker)
	if err != nil {
		err = fmt.Errorf("error parsing MQTT_BROKER: %v", err)
		return
	}
	switch brokerURI.Scheme {
	case "mqtt", "": // translate scheme to compatible
		brokerURI.Scheme = "tcp"
	case "mqtts":
		brokerURI.Scheme = "ssl"
	}
	prefix = brokerURI.Path
	if len(prefix) > 0 && prefix[0] == '/' {
		prefix = prefix[1:]
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	brokerURI.Path = ""

	opts = mqtt.NewClientOptions()
	opts.AddBroker(brokerURI.String())
	if brokerURI.User != nil {
		username := brokerURI.User.Username()
		opts.SetUsername(username)
		password, _ := brokerURI.User.Password()
		opts.SetPassword(password)
	}
	opts.SetClientID(cid)
	return
}

// MQTTApi exposes the Gateway over MQTT. Requests are received on <prefix>/requests and responses are
// published on <prefix>/responses
type MQTTApi struct {
	gateway  *gateway.Gateway
	registry *logic.Registry
	client   mqtt.Client
	prefix   string
	logger   *logrus.Entry
}

// NewMQTTApi creates a new MQTTApi for the pistons in registry
func NewMQTTApi(gw *gateway.Gateway, registry *logic.Registry) *MQTTApi {
	return &MQTTApi{
		gw, registry,
		nil, "",
		util.Logger.WithField("module", "MQTTApi"),
	}
}

func (a *MQTTApi) createMQTTOpts() (opts *mqtt.ClientOptions, err error) {
	cid := os.Getenv("MQTT_CID")
	if cid == "" {
		cid = "pistond-1"
	}
	opts, a.prefix, err = BrokerOptions("", cid)
	if err != nil {
		return
	}
	a.logger.Debugf("broker prefix: '%s'", a.prefix)
	opts.SetCleanSession(false)
	return
}

// Start connects to the MQTT broker and listens to the API topics
func (a *MQTTApi) Start() (err error) {
	opts, err := a.createMQTTOpts()
	if err != nil {
		return
	}
	opts.SetWill(a.prefix+"/connected", "false", 1, true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		a.logger.Info("connected to mqtt broker")
		a.updateConnected(true)
		if err := a.UpdateAll(); err != nil {
			a.logger.WithError(err).Error("error updating pistons")
		}
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		a.logger.WithError(err).Warn("lost connection to mqtt broker")
	})
	a.client = mqtt.NewClient(opts)

	go func() {
		for {
			if token := a.client.Connect(); token.WaitTimeout(MQTT_TIMEOUT) && token.Error() != nil {
				a.logger.WithError(token.Error()).
					Errorf("error connecting to mqtt broker. will retry in %v", CONNECT_RETRY_TIMEOUT)
				time.Sleep(CONNECT_RETRY_TIMEOUT)
			} else {
				break
			}
		}

		a.subscribe()
	}()

	return
}

// Stop disconnects from the broker
func (a *MQTTApi) Stop() {
	if a.client.IsConnected() {
		a.logger.Info("disconnecting from mqtt broker")
		a.updateConnected(false)
		a.client.Disconnect(250)
	} else {
		a.logger.Warn("was never connected to broker")
	}
}

// Client gets the MQTT client used by the MQTTApi
func (a *MQTTApi) Client() mqtt.Client {
	return a.client
}

// Prefix gets the topic prefix of this MQTTApi
func (a *MQTTApi) Prefix() string {
	return a.prefix
}

func (a *MQTTApi) publish(topic string, payload interface{}) error {
	token := a.client.Publish(a.prefix+topic, 1, true, payload)
	if token.WaitTimeout(MQTT_TIMEOUT); token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (a *MQTTApi) updateConnected(connected bool) (err error) {
	return a.publish("/connected", strconv.FormatBool(connected))
}

// UpdateAll updates the topics of every piston
func (a *MQTTApi) UpdateAll() (err error) {
	ids, err := json.Marshal(a.registry.IDs())
	if err != nil {
		return
	}
	if err = a.publish("/pistons", ids); err != nil {
		return
	}
	for _, c := range a.registry.Controllers() {
		if err = a.UpdatePiston(c); err != nil {
			return
		}
	}
	return
}

// UpdatePiston updates the status, state, progress and error topics of the piston of c
func (a *MQTTApi) UpdatePiston(c *logic.CycleController) (err error) {
	for topic, payload := range pistonPayloads(c.Status()) {
		err = a.publish(fmt.Sprintf("/pistons/%s/%s", c.ID, topic), payload)
		if err != nil {
			err = fmt.Errorf("error publishing %s of piston '%s': %v", topic, c.ID, err)
			return
		}
	}
	return
}

func (a *MQTTApi) subscribe() {
	reqPath := a.prefix + "/requests"
	resPath := a.prefix + "/responses"
	a.logger.WithField("path", reqPath).Debug("registering request handler")
	a.client.Subscribe(reqPath, 2, func(client mqtt.Client, message mqtt.Message) {
		resBytes, err := a.handleRequest(message.Payload())
		if err != nil {
			a.logger.WithError(err).Error("error marshaling response")
			return
		}
		client.Publish(resPath, 2, false, resBytes)
	})
}

func (a *MQTTApi) handleRequest(payload []byte) ([]byte, error) {
	res := a.gateway.HandleBytes(payload)
	return json.Marshal(&res)
}
