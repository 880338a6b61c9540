package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/storefront/pkg/errorbank"
)

// MessageSuccess is the message carried by every successful envelope.
const MessageSuccess = "success"

// Builder helps construct consistent HTTP responses.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.buildError()
	}
	return b.buildSuccess()
}

// Success is the envelope of a handled request.
type Success struct {
	Message string         `json:"message"`
	Result  any            `json:"result,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Failure is the envelope of a rejected request. Message holds the stable
// error code, ErrorMessage the human-readable text.
type Failure struct {
	Message      string         `json:"message"`
	ErrorMessage string         `json:"errorMessage"`
	Details      map[string]any `json:"details,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
}

func (b *Builder) buildSuccess() error {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.ctx.JSON(b.status, Success{
		Message: MessageSuccess,
		Result:  b.data,
		Meta:    b.meta,
	})
}

func (b *Builder) buildError() error {
	appErr := errorbank.From(b.err)
	status := b.status
	if status < 400 {
		status = appErr.StatusCode()
	}
	return b.ctx.JSON(status, Failure{
		Message:      appErr.Code(),
		ErrorMessage: appErr.Message(),
		Details:      appErr.Details(),
		Meta:         b.meta,
	})
}
