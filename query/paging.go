package query

import (
	"bytes"
	"encoding/base64"
	"fmt"
)

// PageState - непрозрачный токен продолжения постраничной выборки.
// Нулевое значение равно StartPageState.
type PageState struct {
	token []byte
}

// StartPageState возвращает токен начала выборки.
func StartPageState() PageState {
	return PageState{}
}

// NewPageState создает токен из байтов, полученных от бэкенда.
func NewPageState(token []byte) PageState {
	if len(token) == 0 {
		return PageState{}
	}
	return PageState{token: bytes.Clone(token)}
}

// Bytes возвращает копию токена. Для StartPageState возвращает nil.
func (s PageState) Bytes() []byte {
	if len(s.token) == 0 {
		return nil
	}
	return bytes.Clone(s.token)
}

// IsStart сообщает, что токен указывает на начало выборки.
func (s PageState) IsStart() bool {
	return len(s.token) == 0
}

// Equal сравнивает два токена.
func (s PageState) Equal(other PageState) bool {
	return bytes.Equal(s.token, other.token)
}

// String возвращает токен в base64, пустая строка для начала выборки.
func (s PageState) String() string {
	return base64.RawURLEncoding.EncodeToString(s.token)
}

// MarshalText позволяет передавать токен клиентам как строку.
func (s PageState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText восстанавливает токен из MarshalText.
func (s *PageState) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = PageState{}
		return nil
	}
	token, err := base64.RawURLEncoding.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("некорректный токен страницы: %w", err)
	}
	*s = NewPageState(token)
	return nil
}

// PagingResponse описывает состояние выборки после одной страницы.
type PagingResponse struct {
	// State - токен для запроса следующей страницы.
	State PageState
	// HasMorePages - false, когда выборка исчерпана.
	HasMorePages bool
}

// NoMorePages возвращает ответ для последней страницы.
func NoMorePages() PagingResponse {
	return PagingResponse{}
}

// MorePages возвращает ответ, продолжающий выборку с state.
func MorePages(state PageState) PagingResponse {
	return PagingResponse{State: state, HasMorePages: true}
}
