// Package domain contains the core business concepts for the PDF generator:
// the validated render request and the error taxonomy shared by the HTTP layer.
// Keep this package free of transport (HTTP) and infrastructure (Redis/Chrome) concerns.
package domain
