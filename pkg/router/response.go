package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
)

// Response is the envelope used by the admin surface and by error replies.
type Response struct {
	Status  bool        `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SendResult is the body of the send-message endpoint.
type SendResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

func logSuccess(c *fiber.Ctx, code int, message string) {
	statusMessage := http.StatusText(code)
	if statusMessage == message {
		log.Print(c).Info(fmt.Sprintf("%d %v", code, statusMessage))
	} else {
		log.Print(c).Info(fmt.Sprintf("%d %v", code, message))
	}
}

func logError(c *fiber.Ctx, code int, message string) {
	statusMessage := http.StatusText(code)
	entry := log.Print(c)
	if code < http.StatusInternalServerError {
		entry.Warn(fmt.Sprintf("%d %v", code, message))
		return
	}
	if statusMessage == message {
		entry.Error(fmt.Sprintf("%d %v", code, statusMessage))
	} else {
		entry.Error(fmt.Sprintf("%d %v", code, message))
	}
}

func respond(c *fiber.Ctx, code int, message string, data interface{}) error {
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(code)
	}
	logSuccess(c, code, message)
	return c.Status(code).JSON(Response{
		Status:  true,
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func respondError(c *fiber.Ctx, code int, message string) error {
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(code)
	}
	logError(c, code, message)
	return c.Status(code).JSON(Response{
		Status:  false,
		Code:    code,
		Message: message,
		Error:   message,
	})
}

// ResponseJSON writes body as is, for endpoints whose shape is fixed by their
// clients rather than by the Response envelope.
func ResponseJSON(c *fiber.Ctx, code int, body interface{}) error {
	if code >= http.StatusBadRequest {
		logError(c, code, http.StatusText(code))
	} else {
		logSuccess(c, code, http.StatusText(code))
	}
	return c.Status(code).JSON(body)
}

func ResponseSendSuccess(c *fiber.Ctx, message string) error {
	return ResponseJSON(c, http.StatusOK, SendResult{Success: true, Message: message})
}

func ResponseSendFailure(c *fiber.Ctx, code int, message string) error {
	return ResponseJSON(c, code, SendResult{Success: false, Error: message})
}

// ResponseSendError is ResponseSendFailure carrying the underlying cause.
func ResponseSendError(c *fiber.Ctx, code int, message string, err error) error {
	result := SendResult{Success: false, Error: message}
	if err != nil {
		result.Details = err.Error()
	}
	return ResponseJSON(c, code, result)
}

func ResponseSuccess(c *fiber.Ctx, message string) error {
	return respond(c, http.StatusOK, message, nil)
}

func ResponseSuccessWithData(c *fiber.Ctx, message string, data interface{}) error {
	return respond(c, http.StatusOK, message, data)
}

func ResponseCreatedWithData(c *fiber.Ctx, message string, data interface{}) error {
	return respond(c, http.StatusCreated, message, data)
}

func ResponseNoContent(c *fiber.Ctx) error {
	return c.SendStatus(http.StatusNoContent)
}

func ResponseNotFound(c *fiber.Ctx, message string) error {
	return respondError(c, http.StatusNotFound, message)
}

func ResponseUnauthorized(c *fiber.Ctx, message string) error {
	return respondError(c, http.StatusUnauthorized, message)
}

func ResponseBadRequest(c *fiber.Ctx, message string) error {
	return respondError(c, http.StatusBadRequest, message)
}

func ResponseInternalError(c *fiber.Ctx, message string) error {
	return respondError(c, http.StatusInternalServerError, message)
}

func ResponseServiceUnavailable(c *fiber.Ctx, message string) error {
	return respondError(c, http.StatusServiceUnavailable, message)
}
