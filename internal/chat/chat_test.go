package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChatter struct {
	mock.Mock
}

func (m *mockChatter) Chat(ctx context.Context, system, message string) (string, error) {
	args := m.Called(ctx, system, message)
	return args.String(0), args.Error(1)
}

func TestRespond_Success(t *testing.T) {
	llm := &mockChatter{}
	llm.On("Chat", mock.Anything, mock.MatchedBy(func(s string) bool {
		return strings.Contains(s, "Property: 1600 Vine") && strings.Contains(s, "Zoned C4")
	}), "Can I build housing here?").Return("Yes, C4 allows residential use.", nil)

	r := NewResponder(llm)
	resp, err := r.Respond(context.Background(), Request{
		Message:   "  Can I build housing here? ",
		Context:   "Zoned C4",
		Address:   "1600 Vine",
		SessionID: "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "Yes, C4 allows residential use.", resp.Response)
	assert.Empty(t, resp.Error)
	llm.AssertExpectations(t)
}

func TestRespond_EmptyMessage(t *testing.T) {
	llm := &mockChatter{}
	_, err := NewResponder(llm).Respond(context.Background(), Request{Message: " \n "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
	llm.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything, mock.Anything)
}

func TestRespond_ProviderError(t *testing.T) {
	llm := &mockChatter{}
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("rate limited"))

	resp, err := NewResponder(llm).Respond(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, Apology, resp.Response)
	assert.Equal(t, "rate limited", resp.Error)
}

func TestSystemPrompt(t *testing.T) {
	bare := SystemPrompt("", "")
	assert.NotContains(t, bare, "Property:")
	assert.NotContains(t, bare, "Previous analysis")

	long := SystemPrompt("1600 Vine", strings.Repeat("a", maxContextChars+50))
	assert.True(t, strings.HasSuffix(long, "..."))
	assert.NotContains(t, long, strings.Repeat("a", maxContextChars+1))
}
