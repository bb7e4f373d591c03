package rest

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/server"
	"go.uber.org/zap"
)

// ErrResponse is the body of every failed request.
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText    string   `json:"status"`          // user-level status message
	AppCode       string   `json:"code,omitempty"`  // application-specific error code
	ErrorText     string   `json:"error,omitempty"` // application-level error message, for debugging
	ErrValidation []string `json:"validation,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		AppCode:        server.ErrBadParamInput.String(),
		ErrorText:      err.Error(),
	}
}

func ErrValidation(err error, errV []error) render.Renderer {
	vv := []string{}
	for _, v := range errV {
		vv = append(vv, v.Error())
	}
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		AppCode:        server.ErrBadParamInput.String(),
		ErrorText:      err.Error(),
		ErrValidation:  vv,
	}
}

func ErrNotFoundRend(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusNotFound,
		StatusText:     "Resource not found.",
		AppCode:        server.ErrNotFound.String(),
		ErrorText:      err.Error(),
	}
}

func ErrConflictRend(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusConflict,
		StatusText:     "Conflict.",
		AppCode:        server.ErrConflict.String(),
		ErrorText:      err.Error(),
	}
}

func ErrInternalServerErrorRend(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     "Internal server error.",
		AppCode:        server.ErrInternalServerError.String(),
		ErrorText:      "internal server error",
	}
}

// errorRenderer picks the response for err from its server.ErrorCode.
func errorRenderer(err error) render.Renderer {
	switch server.CodeOf(err) {
	case server.ErrBadParamInput:
		return ErrInvalidRequest(err)
	case server.ErrNotFound:
		return ErrNotFoundRend(err)
	case server.ErrConflict:
		return ErrConflictRend(err)
	}
	return ErrInternalServerErrorRend(err)
}

// validate checks request structs and translates failures to english messages.
type validate struct {
	v     *validator.Validate
	trans ut.Translator
}

func newValidate() *validate {
	v := validator.New()
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(v, trans)
	return &validate{v: v, trans: trans}
}

func (v *validate) Struct(s interface{}) render.Renderer {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	return ErrValidation(err, translateError(err, v.trans))
}

func translateError(err error, trans ut.Translator) (errs []error) {
	if err == nil {
		return nil
	}
	var validatorErrs validator.ValidationErrors
	if !errors.As(err, &validatorErrs) {
		return []error{err}
	}
	for _, e := range validatorErrs {
		errs = append(errs, errors.New(e.Translate(trans)))
	}
	return errs
}

type base struct {
	log *zap.Logger
	val *validate
}

func newBase(log *zap.Logger) base {
	if log == nil {
		log = zap.NewNop()
	}
	return base{log: log, val: newValidate()}
}

// bind decodes and validates the request body into data. It renders the error response itself
// and reports whether the handler may go on.
func (b base) bind(w http.ResponseWriter, r *http.Request, data render.Binder) bool {
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return false
	}
	if rend := b.val.Struct(data); rend != nil {
		render.Render(w, r, rend)
		return false
	}
	return true
}

func (b base) fail(w http.ResponseWriter, r *http.Request, err error) {
	if server.CodeOf(err) == server.ErrInternalServerError || server.CodeOf(err) == server.ErrUnknown {
		b.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	render.Render(w, r, errorRenderer(err))
}

func ok(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
