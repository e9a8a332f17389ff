package status

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResponse(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		kind     Kind
		expected string
	}{
		{"explicit error key", 400, `{"error":"La reserva no puede ser cancelada"}`, KindValidation, "La reserva no puede ser cancelada"},
		{"field errors", 400, `{"email":["already taken"],"rut":["invalid","too short"]}`, KindValidation, "email: already taken\nrut: invalid, too short"},
		{"non field errors", 400, `{"non_field_errors":["passwords do not match"]}`, KindValidation, "passwords do not match"},
		{"empty validation body", 400, ``, KindValidation, MsgInvalidData},
		{"nested error object", 422, `{"success":false,"error":{"message":"bad qr","details":{}}}`, KindValidation, "bad qr"},
		{"unauthorized", 401, `{"detail":"token expired"}`, KindAuthentication, MsgUnauthorized},
		{"forbidden", 403, ``, KindAuthorization, MsgForbidden},
		{"not found", 404, `{"detail":"No encontrado."}`, KindNotFound, MsgNotFound},
		{"server error", 500, `<html>oops</html>`, KindServer, MsgServer},
		{"gateway error", 502, ``, KindServer, MsgServer},
		{"conflict with detail", 409, `{"detail":"space taken"}`, KindUnknown, "space taken"},
		{"conflict without body", 409, ``, KindUnknown, MsgUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FromResponse(tt.code, []byte(tt.body))

			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.code, f.StatusCode)
			assert.Equal(t, tt.expected, f.Message)
			assert.Equal(t, tt.expected, f.Error())
		})
	}
}

func TestFromResponse_FieldsKept(t *testing.T) {
	f := FromResponse(400, []byte(`{"nickname":["required"]}`))

	require.NotNil(t, f.Fields)
	assert.Equal(t, []string{"required"}, f.Fields["nickname"])
	assert.Equal(t, []any{"required"}, f.Details["nickname"])
}

func TestTransportAndServerDiffer(t *testing.T) {
	transport := FromTransport(context.DeadlineExceeded)
	server := FromResponse(503, nil)

	assert.NotEmpty(t, transport.Message)
	assert.NotEmpty(t, server.Message)
	assert.NotEqual(t, transport.Message, server.Message)
	assert.Contains(t, transport.Message, "Could not connect")
	assert.Equal(t, KindTransport, transport.Kind)
	assert.Zero(t, transport.StatusCode)
	assert.True(t, errors.Is(transport, context.DeadlineExceeded))
}

func TestMessageAndKindOf(t *testing.T) {
	wrapped := fmt.Errorf("cancel: %w", FromResponse(404, nil))

	assert.Equal(t, MsgNotFound, Message(wrapped))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Empty(t, Message(nil))
}
