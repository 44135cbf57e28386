package app

import (
	"time"

	"dali/pkg/manchester"

	"github.com/womat/debug"
)

// frameMessage is a received frame as published to mqtt and the web service.
type frameMessage struct {
	Time     time.Time `json:"time"`
	Address  byte      `json:"address"`
	Data     byte      `json:"data"`
	Bits     uint16    `json:"bits"`
	HalfBits int       `json:"halfbits"`
}

// transferMessage is a sent frame.
type transferMessage struct {
	Time    time.Time `json:"time"`
	Address byte      `json:"address"`
	Data    byte      `json:"data"`
}

func newTransferMessage(address, data byte) transferMessage {
	return transferMessage{Time: time.Now(), Address: address, Data: data}
}

// receive waits for decoded frames and publishes them until Close is called.
//
// The transceiver reports a frame again for every bit decoded after the
// address byte, so a frame is only taken as received once the line has been
// quiet for app.settle.
func (app *App) receive() {
	defer close(app.done)

	settled := time.NewTimer(app.settle)
	stopTimer(settled)
	defer settled.Stop()

	var last manchester.Frame
	var pending bool

	for {
		select {
		case <-app.quit:
			debug.DebugLog.Print("receive loop stopped")
			return

		case <-app.dali.Ready():
			f, ok := app.dali.Receive()
			if !ok {
				continue
			}
			last, pending = f, true

			stopTimer(settled)
			settled.Reset(app.settle)

		case <-settled.C:
			if !pending {
				continue
			}
			pending = false
			app.received(last)
		}
	}
}

// received stores and publishes a complete frame.
func (app *App) received(f manchester.Frame) {
	msg := &frameMessage{
		Time:     time.Now(),
		Address:  f.Address(),
		Data:     f.Data(),
		Bits:     f.Bits,
		HalfBits: f.HalfBits,
	}
	debug.DebugLog.Printf("received frame %#06x (%v half bits)", f.Bits, f.HalfBits)

	app.last.Lock()
	app.last.frame = msg
	app.last.Unlock()

	app.publish("rx", msg)
}

// stopTimer stops t and drains its channel.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func (app *App) lastFrame() *frameMessage {
	app.last.RLock()
	defer app.last.RUnlock()
	return app.last.frame
}

// publish sends v to the sub topic of the configured mqtt topic.
func (app *App) publish(sub string, v interface{}) {
	if app.config.MQTT.Topic == "" {
		return
	}

	if err := app.mqtt.Publish(app.config.MQTT.Topic+"/"+sub, v); err != nil {
		debug.ErrorLog.Printf("can't publish %v: %v", sub, err)
	}
}
