package testutils

import (
	"github.com/stretchr/testify/mock"
)

// MockSecretHasher lets tests force digest collisions and token generation failures.
type MockSecretHasher struct {
	mock.Mock
}

func (m *MockSecretHasher) GenerateRawToken() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockSecretHasher) Digest(raw string) string {
	args := m.Called(raw)
	return args.String(0)
}
