package query_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/dtx-query/query"
)

// Тест: токен не разделяет память с исходными байтами.
func TestPageState_CopiesToken(t *testing.T) {
	t.Parallel()

	raw := []byte{1, 2, 3}
	state := query.NewPageState(raw)
	raw[0] = 9

	assert.Equal(t, []byte{1, 2, 3}, state.Bytes())

	out := state.Bytes()
	out[1] = 9
	assert.Equal(t, []byte{1, 2, 3}, state.Bytes())
}

// Тест: пустой токен эквивалентен началу выборки.
func TestPageState_Start(t *testing.T) {
	t.Parallel()

	assert.True(t, query.StartPageState().IsStart())
	assert.True(t, query.NewPageState(nil).IsStart())
	assert.True(t, query.NewPageState([]byte{}).Equal(query.StartPageState()))
	assert.Nil(t, query.StartPageState().Bytes())
	assert.Empty(t, query.StartPageState().String())
}

// Тест: токен передается клиенту в JSON и восстанавливается.
func TestPageState_JSON(t *testing.T) {
	t.Parallel()

	type page struct {
		Next query.PageState `json:"next"`
	}

	in := page{Next: query.NewPageState([]byte{0xff, 0x00, 0x10})}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out page
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, in.Next.Equal(out.Next))

	assert.Error(t, out.Next.UnmarshalText([]byte("***")))
}
