package statemanager

import "crypto/rand"

// Party codes are short enough to read over the phone, uppercase so they
// survive being typed on a mobile keyboard.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomCode(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	for i, b := range bytes {
		bytes[i] = codeAlphabet[b%byte(len(codeAlphabet))]
	}
	return string(bytes)
}

// generateCodeLocked produces a party code not currently in use, retrying up
// to the configured bound on collision. After the bound the last candidate is
// accepted anyway: with 36^6 codes a persistent collision means something is
// far more wrong than a duplicate party code. Caller holds m.mu.
func (m *InMemoryManager) generateCodeLocked() string {
	var code string
	for attempt := 0; attempt < m.codeAttempts; attempt++ {
		code = randomCode(m.codeLength)
		if _, exists := m.parties[code]; !exists {
			return code
		}
	}
	return code
}
