package audits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/profixion/internal/domain/audits"
)

func TestParseWebhook_ArrayShape(t *testing.T) {
	body := `[
		{"input":{"url":"https://www.linkedin.com/in/a/"},"name":"A"},
		{"input_url":"https://www.linkedin.com/in/b?x=1","snapshot_id":"s_1"},
		{"url":"https://linkedin.com/in/c","error":"blocked"}
	]`
	got, err := ParseWebhook([]byte(body))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "https://www.linkedin.com/in/a", got[0].ProfileURL)
	assert.False(t, got[0].NeedsFetch())
	assert.Equal(t, "s_1", got[1].JobID)
	assert.Equal(t, "https://www.linkedin.com/in/b", got[1].ProfileURL)
	assert.Equal(t, "blocked", got[2].ProviderError)
}

func TestParseWebhook_Envelope(t *testing.T) {
	got, err := ParseWebhook([]byte(`{"snapshot_id":"s_9","status":"READY"}`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].NeedsFetch())
	assert.Equal(t, "s_9", got[0].JobID)
	assert.Equal(t, "ready", got[0].ProviderStatus)
}

func TestParseWebhook_EmptyArray(t *testing.T) {
	got, err := ParseWebhook([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseWebhook_Rejects(t *testing.T) {
	for _, body := range []string{``, `nope`, `"str"`, `42`, `{"foo":"bar"}`} {
		_, err := ParseWebhook([]byte(body))
		assert.ErrorIs(t, err, domain.ErrValidation, body)
	}
}

func TestFirstProfile(t *testing.T) {
	d, err := firstProfile([]byte(`[{"url":"https://linkedin.com/in/x","name":"X"},{"url":"https://linkedin.com/in/y"}]`))
	require.NoError(t, err)
	assert.Equal(t, "https://linkedin.com/in/x", d.ProfileURL)
	assert.JSONEq(t, `{"url":"https://linkedin.com/in/x","name":"X"}`, string(d.Profile))

	_, err = firstProfile([]byte(`[]`))
	assert.Error(t, err)
}
