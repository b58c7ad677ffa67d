package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptional_UnmarshalJSON(t *testing.T) {
	type payload struct {
		Note Optional[string] `json:"note"`
	}

	tests := []struct {
		name string
		data string
		want Optional[string]
	}{
		{name: "absent", data: `{}`, want: Optional[string]{}},
		{name: "null", data: `{"note":null}`, want: Optional[string]{Set: true}},
		{name: "empty", data: `{"note":""}`, want: Optional[string]{Set: true, Valid: true}},
		{name: "value", data: `{"note":"hi"}`, want: OptionalOf("hi")},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			require.NoError(t, json.Unmarshal([]byte(tt.data), &p))
			assert.Equal(t, tt.want, p.Note)
		})
	}

	t.Run("wrong type", func(t *testing.T) {
		var p payload
		assert.Error(t, json.Unmarshal([]byte(`{"note":1}`), &p))
	})

	t.Run("Ptr", func(t *testing.T) {
		assert.Nil(t, Optional[string]{Set: true}.Ptr())
		if p := OptionalOf("hi").Ptr(); assert.NotNil(t, p) {
			assert.Equal(t, "hi", *p)
		}
	})
}
