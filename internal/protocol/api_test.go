package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt_AcceptsNumbersAndStrings(t *testing.T) {
	tests := []struct {
		in   string
		want Int
	}{
		{`42`, 42},
		{`"42"`, 42},
		{`null`, 0},
		{`""`, 0},
	}
	for _, tc := range tests {
		var got Int
		require.NoError(t, json.Unmarshal([]byte(tc.in), &got), tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	var bad Int
	assert.Error(t, json.Unmarshal([]byte(`"forty-two"`), &bad))
}

func TestShareElement_IgnoresUnknownFields(t *testing.T) {
	payload := `{"id":"7","share_type":3,"path":"/a.txt","permissions":"1",
		"token":"abc","share_with":null,"storage_id":"home::alice","mail_send":0}`

	var el ShareElement
	require.NoError(t, json.Unmarshal([]byte(payload), &el))

	assert.Equal(t, Int(7), el.ID)
	assert.Equal(t, Int(3), el.ShareType)
	assert.Equal(t, Int(1), el.Permissions)
	assert.Equal(t, "abc", Deref(el.Token))
	assert.Nil(t, el.ShareWith)
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(StatusNotFound, "wrong share ID, share doesn't exist", nil)
	require.NoError(t, err)

	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ocs":{"meta":{"status":"failure","statuscode":404,
		"message":"wrong share ID, share doesn't exist"},"data":[]}}`, string(b))
	assert.False(t, env.OCS.Meta.OK())
}

func TestDates(t *testing.T) {
	d := time.Date(2031, time.March, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "09-03-2031", FormatDate(d))

	got, err := ParseDate("09-03-2031")
	require.NoError(t, err)
	assert.True(t, got.Equal(d))

	got, err = ParseDate("2031-03-09")
	require.NoError(t, err)
	assert.True(t, got.Equal(d))

	_, err = ParseDate("03/09/2031")
	assert.Error(t, err)

	exp, err := ParseExpiration(FormatExpiration(d))
	require.NoError(t, err)
	assert.True(t, exp.Equal(d))
}
