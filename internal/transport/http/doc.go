// Package http exposes the instrument, ingestion, analysis and job
// operations over a chi router.
//
// Handlers stay thin: they parse the request, call one service method and
// render the result. Successful responses use the envelope
//
//	{"status": "success", "data": ...}
//
// and every error goes through errors.ErrorHandler, which renders an
// RFC 7807 problem document.
package http
