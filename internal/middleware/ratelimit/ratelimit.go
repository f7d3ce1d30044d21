package ratelimit

import (
	"net/http"
	"time"

	httprate "github.com/go-chi/httprate"
)

// Initiate bounds how many codes one client can have mailed.
func Initiate() func(http.Handler) http.Handler {
	return limitByIP(5, 10*time.Minute)
}

// VerifyOTP bounds code guessing per client.
func VerifyOTP() func(http.Handler) http.Handler {
	return limitByIP(10, 10*time.Minute)
}

func Refresh() func(http.Handler) http.Handler {
	return limitByIP(30, 10*time.Minute)
}

func limitByIP(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.LimitByIP(limit, window)
}
