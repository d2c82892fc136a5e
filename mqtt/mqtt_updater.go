package mqtt

import (
	"encoding/json"
	"sync"

	"github.com/gsarrafian/PneumaticsApp/datamodel"
	"github.com/gsarrafian/PneumaticsApp/logic"
	"github.com/gsarrafian/PneumaticsApp/util"
	"github.com/sirupsen/logrus"
)

// pistonPayloads gets the payload of each piston topic for status
func pistonPayloads(status logic.Status) map[string][]byte {
	statusJSON, _ := json.Marshal(datamodel.StatusToJSON(status))
	lastError := ""
	if status.LastError != nil {
		lastError = status.LastError.Error()
	}
	return map[string][]byte{
		"status":   statusJSON,
		"state":    []byte(status.State()),
		"progress": []byte(status.Progress()),
		"error":    []byte(lastError),
	}
}

type pistonUpdater interface {
	UpdatePiston(c *logic.CycleController) error
}

// MQTTUpdater updates MQTT topics when the state of a piston changes
type MQTTUpdater struct {
	registry *logic.Registry
	onUpdate chan *logic.CycleController
	stop     chan struct{}
	wait     sync.WaitGroup
	api      pistonUpdater
	logger   *logrus.Entry
}

// NewMQTTUpdater creates a new MQTTUpdater for the pistons in registry
func NewMQTTUpdater(registry *logic.Registry) *MQTTUpdater {
	return &MQTTUpdater{
		registry: registry,
		onUpdate: make(chan *logic.CycleController, 10),
		stop:     make(chan struct{}),
		logger:   util.Logger.WithField("module", "MQTTUpdater"),
	}
}

// forward sends c to onUpdate every time it signals an update
func (u *MQTTUpdater) forward(c *logic.CycleController) {
	defer u.wait.Done()
	for {
		select {
		case <-u.stop:
			return
		case <-c.Updates():
			select {
			case u.onUpdate <- c:
			case <-u.stop:
				return
			}
		}
	}
}

func (u *MQTTUpdater) run() {
	defer u.wait.Done()
	u.logger.Debug("starting updater")
	for {
		select {
		case <-u.stop:
			return
		case c := <-u.onUpdate:
			updated := map[*logic.CycleController]bool{}
			for _, c := range append([]*logic.CycleController{c}, util.DrainChan(u.onUpdate)...) {
				if updated[c] {
					continue
				}
				updated[c] = true
				u.logger.WithFields(logrus.Fields{"piston": c.ID, "status": c.Status()}).Debug("piston update")
				if err := u.api.UpdatePiston(c); err != nil {
					u.logger.WithError(err).Error("error updating piston")
				}
			}
		}
	}
}

// Start starts the MQTTUpdater to listen and update topics
func (u *MQTTUpdater) Start(api pistonUpdater) {
	u.api = api
	controllers := u.registry.Controllers()
	u.wait.Add(len(controllers) + 1)
	for _, c := range controllers {
		go u.forward(c)
	}
	go u.run()
}

// Stop stops the updater from updating topics
func (u *MQTTUpdater) Stop() {
	close(u.stop)
	u.wait.Wait()
}
