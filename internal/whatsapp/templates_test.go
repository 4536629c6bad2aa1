package whatsapp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterApproved(t *testing.T) {
	in := []Template{
		{Name: "a", Status: "APPROVED"},
		{Name: "b", Status: "PENDING"},
		{Name: "c", Status: "REJECTED"},
		{Name: "d", Status: "APPROVED"},
	}
	got := FilterApproved(in)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "d", got[1].Name)
}

func TestLanguageDecoding(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"language":"id"}`, "id"},
		{`{"language":{"code":"pt_BR"}}`, "pt_BR"},
		{`{"language":{"policy":"deterministic"}}`, DefaultLanguage},
		{`{"language":42}`, DefaultLanguage},
		{`{"language":null}`, DefaultLanguage},
		{`{}`, DefaultLanguage},
	}
	for _, tt := range tests {
		var tpl Template
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &tpl), tt.raw)
		assert.Equal(t, tt.want, tpl.Language.Code(), tt.raw)
	}
}

func TestFindTemplate(t *testing.T) {
	list := []Template{{Name: "a"}, {Name: "b"}}
	assert.Equal(t, "b", FindTemplate(list, "b").Name)
	assert.Nil(t, FindTemplate(list, "zzz"))
}
