package main

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestErrorResponseUsesEnvelope(t *testing.T) {
	resp := errorResponse("bootstrap_failed", "Server error")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "bootstrap_failed" || resp.Headers["Content-Type"] != "application/json" {
		t.Fatalf("unexpected response %+v", resp)
	}
}
