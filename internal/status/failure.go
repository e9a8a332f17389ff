package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind is the failure category assigned at the HTTP boundary.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindServer
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

const (
	MsgInvalidData  = "Invalid data"
	MsgUnauthorized = "Not authorized. Please sign in again."
	MsgForbidden    = "You do not have permission to perform this action."
	MsgNotFound     = "Resource not found."
	MsgServer       = "Server error. Please try again later."
	MsgTransport    = "Could not connect to the server. Check your connection."
	MsgUnknown      = "Unknown error"
)

// Failure is the single error shape returned by every remote call.
type Failure struct {
	Kind       Kind
	StatusCode int
	Message    string
	Details    map[string]any
	Fields     map[string][]string

	err error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.err
}

// FromTransport classifies a request that produced no response.
func FromTransport(err error) *Failure {
	f := &Failure{
		Kind:    KindTransport,
		Message: MsgTransport,
		err:     err,
	}
	if err != nil {
		f.Details = map[string]any{"cause": err.Error()}
	}
	return f
}

// Unexpected wraps a response the client could not interpret.
func Unexpected(code int, err error) *Failure {
	return &Failure{
		Kind:       KindUnknown,
		StatusCode: code,
		Message:    MsgUnknown,
		err:        err,
	}
}

// FromResponse classifies a non-2xx response using its status code and body.
func FromResponse(code int, body []byte) *Failure {
	var data map[string]any
	if len(body) > 0 {
		// Non-JSON bodies (proxy error pages) are classified by code alone.
		_ = json.Unmarshal(body, &data)
	}

	f := &Failure{
		StatusCode: code,
		Details:    data,
	}

	switch {
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		f.Kind = KindValidation
		f.Fields = fieldErrors(data)
		switch msg := serverMessage(data); {
		case msg != "":
			f.Message = msg
		case len(f.Fields) > 0:
			f.Message = joinFieldErrors(f.Fields)
		default:
			f.Message = MsgInvalidData
		}

	case code == http.StatusUnauthorized:
		f.Kind = KindAuthentication
		f.Message = MsgUnauthorized

	case code == http.StatusForbidden:
		f.Kind = KindAuthorization
		f.Message = MsgForbidden

	case code == http.StatusNotFound:
		f.Kind = KindNotFound
		f.Message = MsgNotFound

	case code >= http.StatusInternalServerError:
		f.Kind = KindServer
		f.Message = MsgServer

	default:
		f.Kind = KindUnknown
		f.Message = serverMessage(data)
		if f.Message == "" {
			f.Message = MsgUnknown
		}
	}

	return f
}

// Message returns the user-facing text for any error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return err.Error()
}

// KindOf returns the failure kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

var reservedKeys = map[string]bool{
	"error":   true,
	"detail":  true,
	"message": true,
	"success": true,
}

func serverMessage(data map[string]any) string {
	for _, key := range []string{"error", "detail", "message"} {
		switch v := data[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			// {"error": {"message": ..., "details": ...}}
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return ""
}

func fieldErrors(data map[string]any) map[string][]string {
	fields := make(map[string][]string)
	for key, value := range data {
		if reservedKeys[key] {
			continue
		}
		switch v := value.(type) {
		case string:
			fields[key] = []string{v}
		case []any:
			for _, item := range v {
				fields[key] = append(fields[key], fmt.Sprint(item))
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// joinFieldErrors renders "field: a, b" lines in key order.
func joinFieldErrors(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		msgs := strings.Join(fields[key], ", ")
		if key == "non_field_errors" {
			lines = append(lines, msgs)
			continue
		}
		lines = append(lines, key+": "+msgs)
	}
	return strings.Join(lines, "\n")
}
