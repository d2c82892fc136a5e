package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gsarrafian/PneumaticsApp/datamodel"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var errTimeout = errors.New("the operation timed out")

// PistonClient sends gateway requests to pistond over MQTT and matches the responses by rid
type PistonClient struct {
	mqttClient mqtt.Client
	prefix     string
	timeout    time.Duration

	lastRid   int32
	pendingMu sync.Mutex
	pending   map[int]chan datamodel.ResponseJSON
}

// NewPistonClient creates a client publishing under prefix. Rids start at a random value so the
// responses of clients sharing the broker do not collide.
func NewPistonClient(mqttClient mqtt.Client, prefix string, timeout time.Duration) *PistonClient {
	return &PistonClient{
		mqttClient: mqttClient,
		prefix:     prefix,
		timeout:    timeout,
		lastRid:    rand.Int31n(1 << 30),
		pending:    make(map[int]chan datamodel.ResponseJSON),
	}
}

func (c *PistonClient) Connect() error {
	if token := c.mqttClient.Connect(); token.WaitTimeout(c.timeout) && token.Error() != nil {
		return fmt.Errorf("error connecting to mqtt broker: %w", token.Error())
	} else if !c.mqttClient.IsConnected() {
		return fmt.Errorf("error connecting to mqtt broker: %w", errTimeout)
	}
	return c.subscribe()
}

func (c *PistonClient) Disconnect() {
	c.mqttClient.Disconnect(250)
}

func (c *PistonClient) subscribe() error {
	token := c.mqttClient.Subscribe(c.prefix+"/responses", 1, c.handleResponse)
	if !token.WaitTimeout(c.timeout) {
		return errTimeout
	}
	return token.Error()
}

func (c *PistonClient) handleResponse(_ mqtt.Client, message mqtt.Message) {
	var res datamodel.ResponseJSON
	if err := json.Unmarshal(message.Payload(), &res); err != nil {
		log.WithError(err).Warn("invalid response received")
		return
	}
	c.pendingMu.Lock()
	ch, ok := c.pending[res.Rid]
	delete(c.pending, res.Rid)
	c.pendingMu.Unlock()
	if !ok {
		log.WithField("rid", res.Rid).Debug("ignoring response to another client")
		return
	}
	ch <- res
}

// Request sends req and waits for its response. The rid of req is assigned by Request
func (c *PistonClient) Request(ctx context.Context, req datamodel.RequestJSON) (datamodel.ResponseJSON, error) {
	req.Rid = int(atomic.AddInt32(&c.lastRid, 1))
	ch := make(chan datamodel.ResponseJSON, 1)
	c.pendingMu.Lock()
	c.pending[req.Rid] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.Rid)
		c.pendingMu.Unlock()
	}()

	payload, err := json.Marshal(&req)
	if err != nil {
		return datamodel.ResponseJSON{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	token := c.mqttClient.Publish(c.prefix+"/requests", 2, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return datamodel.ResponseJSON{}, err
		}
	case <-ctx.Done():
		return datamodel.ResponseJSON{}, errTimeout
	}
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return datamodel.ResponseJSON{}, errTimeout
	}
}

// displayLine is the text shown for a status response: Idle, Paused, Running current/total, or unavailable
func displayLine(res datamodel.ResponseJSON, err error) string {
	if err != nil || !res.OK || res.Status == nil {
		return "unavailable"
	}
	if res.Status.Running && !res.Status.Paused && res.Progress != "" {
		return res.State + " " + res.Progress
	}
	return res.State
}

// Watch polls the status of pistonID every interval and calls display with each line until ctx is done
func (c *PistonClient) Watch(ctx context.Context, pistonID string, interval time.Duration, display func(string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		res, err := c.Request(ctx, datamodel.RequestJSON{Type: "status", PistonID: pistonID})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.WithError(err).Debug("status poll failed")
		}
		display(displayLine(res, err))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
