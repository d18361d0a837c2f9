package llm

import "context"

// MockGenerator returns canned responses for tests. Responses are consumed in
// order; once exhausted, the last response repeats. A non-nil Err is returned
// on every call instead.
type MockGenerator struct {
	Responses []string
	Err       error
	Calls     int
}

// Generate returns the next canned response.
func (m *MockGenerator) Generate(_ context.Context, _, _ string, _ float32) (string, error) {
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	i := m.Calls - 1
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}

// Close is a no-op.
func (m *MockGenerator) Close() error { return nil }
