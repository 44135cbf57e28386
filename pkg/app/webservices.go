package app

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// transferRequest is the body of a transfer request.
// Pointers distinguish a missing field from a zero value.
type transferRequest struct {
	Address *int `json:"address"`
	Data    *int `json:"data"`
}

// runWebServer starts the applications web server and listens for web requests.
//  It's designed to run in a separate go function to not block the main go function.
//  e.g.: go runWebServer()
//  See app.Run()
func (app *App) runWebServer() {
	err := app.web.Listen(app.urlParsed.Host)
	debug.ErrorLog.Print(err)
}

// HandleFrame returns the last received frame.
func (app *App) HandleFrame() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request frame")

		f := app.lastFrame()
		if f == nil {
			return fiber.NewError(http.StatusNotFound, "no frame received")
		}
		return ctx.JSON(f)
	}
}

// HandleTransfer sends the address and data of the request body to the bus.
//  input example: {"address":1,"data":255}
func (app *App) HandleTransfer() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request transfer")

		var req transferRequest
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		if !isByte(req.Address) || !isByte(req.Data) {
			return fiber.NewError(http.StatusBadRequest, "address and data must be values between 0 and 255")
		}

		address, data := byte(*req.Address), byte(*req.Data)
		if err := app.Transfer(address, data); err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}

		ctx.Status(http.StatusOK)
		return ctx.JSON(newTransferMessage(address, data))
	}
}

func isByte(v *int) bool {
	return v != nil && *v >= 0 && *v <= 0xff
}
