package app

import (
	"net/url"
	"sync"
	"time"

	"dali/pkg/app/config"
	"dali/pkg/manchester"
	"dali/pkg/mqtt"
	"dali/pkg/port"
	"dali/pkg/raspberry"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// line is a bus line pair the transceiver is connected to.
type line interface {
	port.IO
	Attach(port.EdgeHandler)
}

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// bus is the gpio line pair, nil if not opened by the app
	bus raspberry.Bus

	// dali is the transceiver of the bus
	dali *manchester.Transceiver

	// last holds the last received frame
	last struct {
		sync.RWMutex
		frame *frameMessage
	}

	// settle is the quiet time after the last decoded bit until a frame is complete
	settle time.Duration

	// quit stops the receive loop
	quit chan struct{}
	// done signals that the receive loop is stopped
	done      chan struct{}
	closeOnce sync.Once
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    config,
		urlParsed: u,

		web:  fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt: mqtt.New(),

		settle: config.Timing.Params.BackwardStop,

		quit: make(chan struct{}),
		done: make(chan struct{}),
	}, nil
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()
	go app.receive()

	return nil
}

// init initializes the application.
func (app *App) init() (err error) {
	if err = app.openBus(); err != nil {
		return err
	}

	if err = app.mqtt.Connect(app.config.MQTT.Connection); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initDefaultRoutes should be always called last because it may access things like app.dali
	// which must be initialized before
	app.initDefaultRoutes()

	return nil
}

// openBus opens the configured gpio lines and connects the transceiver.
func (app *App) openBus() (err error) {
	clock := port.NewMonotonicClock()

	if app.bus, err = raspberry.Open(app.config.Bus(), clock); err != nil {
		debug.ErrorLog.Printf("can't open gpio bus: %v", err)
		return err
	}

	if err = app.connect(app.bus, clock); err != nil {
		debug.ErrorLog.Printf("can't enable bus reception: %v", err)
		return err
	}

	return nil
}

// connect creates the transceiver on l and enables reception.
func (app *App) connect(l line, clock port.Clock) error {
	app.dali = manchester.New(l, clock, manchester.WithParams(app.config.Timing.Params))
	l.Attach(app.dali)

	debug.InfoLog.Printf("bus timing (ticks): %v", app.dali.Timing())
	return l.EnableRx()
}

// Transfer sends one address/data frame and publishes it.
func (app *App) Transfer(address, data byte) error {
	if err := app.dali.Transfer(address, data); err != nil {
		debug.ErrorLog.Printf("transfer %#04x %#04x: %v", address, data, err)
		return err
	}

	app.publish("tx", newTransferMessage(address, data))
	return nil
}

// Send opens the bus, sends one frame and returns.
// Neither the web server nor the broker connection is started.
func (app *App) Send(address, data byte) error {
	if err := app.openBus(); err != nil {
		return err
	}

	if err := app.dali.Transfer(address, data); err != nil {
		debug.ErrorLog.Printf("transfer %#04x %#04x: %v", address, data, err)
		return err
	}

	debug.InfoLog.Printf("sent address: %#04x, data: %#04x", address, data)
	return nil
}

// Close stops the receive loop and releases the bus and the broker connection.
func (app *App) Close() error {
	app.closeOnce.Do(func() {
		if app.quit != nil {
			close(app.quit)
		}
	})

	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}

	if app.bus != nil {
		return app.bus.Close()
	}
	return nil
}
