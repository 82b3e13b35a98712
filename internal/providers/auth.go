package providers

import "net/http"

// bearerCredential is the decrypted provider credential. Empty means the
// backend is reached without authentication, the usual case for a local Ollama.
type bearerCredential string

func (c bearerCredential) apply(req *http.Request) {
	if c == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+string(c))
}
